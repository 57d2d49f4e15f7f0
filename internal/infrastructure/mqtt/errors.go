package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps a failed or timed-out first connection.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected means the broker link is down; the message was not sent.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps encoding, size and broker acknowledgement failures.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidQoS rejects a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
