// Package client provides the HTTP client for the help-desk backend.
// Types mirror the backend wire contract without importing backend packages.
package client

// SessionRequest is the body of POST /help/session.
type SessionRequest struct {
	CustomerName string `json:"customer_name"`
}

// SessionResponse carries the credentials the backend issues for one
// service request.
type SessionResponse struct {
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// QueueRequest is the body of POST /help/queue.
type QueueRequest struct {
	SessionID string `json:"session_id"`
}

// QueueResponse identifies the caller's position in the wait queue.
type QueueResponse struct {
	QueueID string `json:"queueId"`
}

// DequeueRequest is the body of POST /help/queue/{queueId}. The method
// override marks it as a delete.
type DequeueRequest struct {
	Method string `json:"_METHOD"`
}

// DequeueResponse acknowledges a dequeue. Its content is informational.
type DequeueResponse struct {
	Removed bool `json:"removed"`
}

// MethodDelete is the override value carried by DequeueRequest.
const MethodDelete = "DELETE"
