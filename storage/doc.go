// Package storage provides the object storage abstraction used to persist
// checkpoints and to read object-backed record sources.
//
// # Backends
//
//   - memory: in-process map, for tests and single-process runs
//   - storage/local: local filesystem with atomic writes
//   - storage/s3: Amazon S3 and S3-compatible storage
//   - redis: Redis keys (github.com/kbukum/datapipe/redis)
//   - sql: a GORM-managed table (github.com/kbukum/datapipe/database)
//
// # Configuration
//
//	checkpoint:
//	  storage:
//	    provider: "s3"
//	    bucket: "training-checkpoints"
//	    region: "us-east-1"
package storage
