package content

// Message is the fixed greeting returned by every content endpoint.
const Message = "Hello, World!"

// Data models the response payload for content endpoints.
type Data struct {
	Message string `json:"message" doc:"Greeting message" example:"Hello, World!"`
}
