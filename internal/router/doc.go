// Package router persists messages and fans them out to live connections.
//
// Every operation stores first and pushes second: a storage failure aborts
// before any recipient sees the message. Recipients without a live
// connection receive nothing now and read the message from history later.
package router
