// Package output renders evaluation results for people and for machines.
//
// Three formats are supported:
//
//	auto    the result as it reads in an expression, strings unquoted;
//	        lists and maps longer than 100 characters switch to a table
//	json    indented JSON of the normalized result
//	pretty  lists and maps as Key/Value/Type tables, scalars as "value (type)"
//
// Normalize makes any result safe for encoding/json. The worker uses it for
// stream payloads and the command line uses it for --output json.
package output
