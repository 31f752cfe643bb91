// Package apperrors defines the stable error kinds returned to callers of the
// matchmaking engine.
package apperrors

import "connectrpc.com/connect"

// Kind is a machine-readable rejection reason.
type Kind string

const (
	KindUnknown                  Kind = "UNKNOWN"
	KindAlreadyQueued            Kind = "ALREADY_QUEUED"
	KindQueueFull                Kind = "QUEUE_FULL"
	KindNotInProposal            Kind = "NOT_IN_PROPOSAL"
	KindAlreadyResolved          Kind = "ALREADY_RESOLVED"
	KindNotYourTurn              Kind = "NOT_YOUR_TURN"
	KindAlreadyBanned            Kind = "ALREADY_BANNED"
	KindAlreadyVoted             Kind = "ALREADY_VOTED"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindInvalidStateForOperation Kind = "INVALID_STATE_FOR_OPERATION"
	KindNotFound                 Kind = "NOT_FOUND"
	KindInvalidArgument          Kind = "INVALID_ARGUMENT"
)

// ConnectCode maps a kind onto the RPC status space.
func (k Kind) ConnectCode() connect.Code {
	switch k {
	case KindUnauthorized:
		return connect.CodeUnauthenticated
	case KindNotFound:
		return connect.CodeNotFound
	case KindInvalidArgument:
		return connect.CodeInvalidArgument
	case KindAlreadyQueued:
		return connect.CodeAlreadyExists
	case KindQueueFull:
		return connect.CodeResourceExhausted
	case KindAlreadyResolved:
		return connect.CodeAborted
	case KindNotInProposal, KindNotYourTurn, KindAlreadyBanned,
		KindAlreadyVoted, KindInvalidStateForOperation:
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeUnknown
	}
}
