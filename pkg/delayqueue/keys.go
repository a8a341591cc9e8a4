package delayqueue

import "fmt"

// contentKey returns the body key.
// Format: {prefix}:pool:{topic}:{id}
func contentKey(prefix, topic, id string) string {
	return fmt.Sprintf("%s:pool:%s:%s", prefix, topic, id)
}

// indexKey returns the sorted set key.
// Format: {prefix}:queue:{topic}
func indexKey(prefix, topic string) string {
	return fmt.Sprintf("%s:queue:%s", prefix, topic)
}
