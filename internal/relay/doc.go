// Package relay is the client side of the server API: a resty-based
// implementation of domain.RelayClient for the REST routes, and a gorilla
// WebSocket Transport for the live event stream.
//
// Every call takes a context. Network failures surface as transport errors;
// error responses carry the server's error code back into a *domain.Error.
package relay
