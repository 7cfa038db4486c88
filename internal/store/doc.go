// Package store persists named evaluation contexts in Redis.
//
// Each context is a JSON object of variables stored under
// "cel:context:<name>". Workers load a stored context when a request names
// one with context_key, and merge the request's inline variables on top.
package store
