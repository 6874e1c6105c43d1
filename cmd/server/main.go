package main

import (
	"os"

	"servimatt/chat/internal/app"
)

// @title           Servimatt Chat API
// @version         1.0
// @description     Conversations, drafts and streamed assistant replies for the Servimatt chat client.
// @host            localhost:8000
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
