package redisq

import "strings"

// Redis key naming for courier queues. All keys are prefixed with
// "courier:" to avoid collisions.

const keyPrefix = "courier:"

// streamKey returns the Stream key for a queue: courier:queue:{name}
func streamKey(queue string) string { return keyPrefix + "queue:" + queue }

// retryKey returns the Sorted Set holding delayed requeues, scored by
// release time: courier:retry:{name}
func retryKey(queue string) string { return keyPrefix + "retry:" + queue }

// deadKey returns the dead-letter Stream for a queue: courier:dead:{name}
func deadKey(queue string) string { return keyPrefix + "dead:" + queue }

// retryMember encodes a parked requeue body as a sorted-set member.
// Members must be unique or byte-identical bodies collapse into one
// entry, so each gets a random token prefix.
func retryMember(token string, body []byte) string {
	return token + "|" + string(body)
}

// retryMemberBody strips the uniqueness token from a sorted-set member.
// Members written before the token was introduced pass through unchanged.
func retryMemberBody(member string) []byte {
	if _, rest, ok := strings.Cut(member, "|"); ok {
		return []byte(rest)
	}
	return []byte(member)
}
