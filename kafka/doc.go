// Package kafka reads a Kafka topic partition as a pipeline record source.
//
// A partition source yields the messages between the partition's first
// offset and the high-water mark observed when the handle opens, so one
// pass over a live topic is still finite. Positions are message offsets;
// a restored pipeline seeks the reader straight to the saved offset.
//
//	kafka:
//	  brokers: ["localhost:9092"]
//	  topic: "training-events"
//	  partition: 0
package kafka
