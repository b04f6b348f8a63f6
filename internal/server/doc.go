// Package server exposes the relay over HTTP and WebSockets.
//
// Routes
//
//   - /api/auth/...           signup, login, logout, me
//   - /api/messages/...       users, key directory, direct history/send/edit/delete, pin and archive
//   - /api/groups/...         create, add-members, remove-members, leave-group, my-groups
//   - /api/group-messages/... group history and send
//   - /ws                     live events (presence, typing, message fan-out)
//   - /metrics, /healthz
//
// Every /api route except signup, login and logout requires a JWT, read from the
// Authorization header, the "token" cookie or the "token" query parameter.
package server
