// Package http exposes the desk booking services as a JSON API on gin.
//
// Every route below /api/v1 except POST /auth/login requires an
// "Authorization: Bearer <token>" header carrying a token from the login
// endpoint. Routes marked admin additionally require the administrator flag.
//
//   - POST /api/v1/auth/login: {"email","password"} to {"token","token_type","expires_at","user"}.
//   - POST /api/v1/users (admin): creates an account.
//   - GET /api/v1/offices, /offices/{office}/floors, /offices/{office}/floors/{floor}/sectors:
//     the building hierarchy as {"items": [...]}.
//   - GET /api/v1/offices/{office}/floors/{floor}/desks?sector=: desks of a floor.
//   - POST /api/v1/desks (admin): registers a desk.
//   - GET /api/v1/slots?date=YYYY-MM-DD: the 15 minute grid and suggested interval.
//   - POST /api/v1/bookings, GET /api/v1/bookings, GET /api/v1/bookings/current,
//     GET /api/v1/bookings/{id}, POST /api/v1/bookings/{id}/check-in,
//     POST /api/v1/bookings/{id}/cancel: the booking lifecycle.
//   - GET /api/v1/reports/most-booked-desk, /reports/most-frequent-user (admin).
//   - POST /api/v1/admin/sweep (admin): runs the reconciler once.
//   - GET /healthz: store reachability.
//
// Errors share one body: {"error_code","message","errors"}. Booking conflicts
// add "conflicts" listing the overlapping bookings.
package http
