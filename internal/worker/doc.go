// Package worker implements the evaluation worker lifecycle and Redis Streams integration.
//
// The worker reads evaluation requests from a Redis stream through a consumer
// group, evaluates them and publishes one result per request. Failed requests
// are also copied to "<result stream>.errors". Every message is acknowledged.
//
// A request is a JSON document in the message's "data" field:
//
//	{"id": "r1", "expression": "price * quantity", "context": {"price": 2.5, "quantity": 4}}
//	{"id": "r2", "rules": {"rules": [{"condition": "score > 0.5", "target": "review"}], "fallback": "done"}, "context_key": "order-7"}
//
// context_key loads variables saved by the store package; inline context
// values override them. mode overrides the worker's evaluation mode.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	evaluator, _ := cel.NewEvaluator(cel.WithMode(cfg.Mode()))
//	contexts := store.NewContextStore(redisClient, cfg.ContextTTL, logger)
//
//	w := worker.NewWorker(cfg, redisClient, evaluator, rules.NewRouter(evaluator, logger), contexts, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, redisClient, evaluator, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
