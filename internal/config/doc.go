// Package config provides configuration management for the evaluation worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
//
// Variables: WORKER_ID, REDIS_ADDR, REDIS_PASS, REDIS_DB, STREAM_KEY,
// CONSUMER_GROUP, RESULT_STREAM, BLOCK_TIME, EVAL_MODE (python or strict),
// PROGRAM_CACHE_SIZE (0 for unbounded), CONTEXT_TTL (0 keeps stored
// contexts forever), HEALTH_PORT and LOG_LEVEL.
package config
