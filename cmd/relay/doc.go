// Command relay runs the parley server: the REST API for accounts, keys,
// messages and groups, and the /ws event stream for live delivery, presence
// and typing.
//
// Configuration comes from relay.yaml (or --config), PARLEY_* environment
// variables and a .env file, in increasing precedence for the environment:
//
//	addr             listen address (default :5001)
//	db_path          bbolt database file (default parley.db)
//	jwt_secret       HS256 signing secret, required
//	token_ttl        session lifetime (default 168h)
//	rsa_bits         identity key size generated at signup (default 2048)
//	log_level        zerolog level (default info)
//	log_format       json or console (default json)
//	allowed_origins  WebSocket origins; empty allows any
//	metrics          expose /metrics (default true)
//
// The server stores each user's key pair and hands the private key back only
// to its owner. It never sees message plaintext for encrypted direct messages.
package main
