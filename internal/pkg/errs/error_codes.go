/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat and Message Business Logic Errors
const (
	// ErrChatNotFound indicates that the referenced chat does not exist.
	ErrChatNotFound = 2101

	// ErrNotParticipant indicates that the acting user is not a participant of the chat.
	ErrNotParticipant = 2102

	// ErrMessageKindInvalid indicates a message type outside the closed text/image/audio/file set.
	ErrMessageKindInvalid = 2201

	// ErrMessageTextRequired indicates an empty (after trimming) body on a text message.
	ErrMessageTextRequired = 2202

	// ErrMessageContentTooLong indicates that the message text exceeded the maximum length limit.
	ErrMessageContentTooLong = 2203

	// ErrAttachmentRequired indicates a non-text message without an attachment.
	ErrAttachmentRequired = 2204

	// ErrFileSizeTooLarge indicates that an uploaded attachment exceeded the size limit.
	ErrFileSizeTooLarge = 2205
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing, malformed, expired, or badly signed bearer token.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = 3002

	// ErrInvalidUsername indicates a username outside the allowed format.
	ErrInvalidUsername = 3003

	// ErrInvalidPassword indicates a password outside the allowed length range.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates a registration conflict on username or email.
	ErrUserAlreadyExists = 3005

	// ErrUserNotFound indicates that the referenced account does not exist.
	ErrUserNotFound = 3006
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrPersistenceFailed indicates that durable storage rejected or lost a write.
	ErrPersistenceFailed = 5001

	// ErrFileStorageFailed indicates that the attachment blob store rejected an operation.
	ErrFileStorageFailed = 5002
)
