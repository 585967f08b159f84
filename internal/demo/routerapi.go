package demo

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/paneda/beauty-sub000"
)

// RouterAPI is a small REST-ish demo built on beauty.Router: path
// parameters, JSON bodies and CORS, none of it touching the file sink.
type RouterAPI struct {
	router *beauty.Router
}

// NewRouterAPI returns a RouterAPI with its routes and CORS policy already
// configured.
func NewRouterAPI() *RouterAPI {
	a := &RouterAPI{router: beauty.NewRouter()}
	a.router.ConfigureCors(beauty.CorsConfig{
		AllowedOrigins: map[string]bool{"*": true},
		AllowedHeaders: map[string]bool{"Content-Type": true, "Authorization": true},
	})
	a.setupRoutes()
	return a
}

func (a *RouterAPI) setupRoutes() {
	a.router.AddRoute("GET", "/api/users", a.usersGet)
	a.router.AddRoute("GET", "/api/users/{userId}", a.usersUserIDGet)
	a.router.AddRoute("POST", "/api/users", a.usersPost)
	a.router.AddRoute("PUT", "/api/users/{userId}", a.usersUserIDPut)
	a.router.AddRoute("DELETE", "/api/users/{userId}", a.usersUserIDDelete)
	a.router.AddRoute("GET", "/api/users/{userId}/posts/{postId}", a.usersUserIDPostsPostIDGet)
}

// HandleRequest is registered as a RequestHandlerFunc. If no route matches,
// it returns without finalizing the reply, leaving the rest of the chain
// (and eventually the 404 stock reply) to handle it.
func (a *RouterAPI) HandleRequest(req *beauty.Request, reply *beauty.Reply) {
	a.router.Handle(req, reply)
}

func writeJSON(reply *beauty.Reply, status beauty.Status, v any) {
	body, _ := json.Marshal(v)
	*reply.Content = append((*reply.Content)[:0], body...)
	reply.SendWithContentType(status, "application/json")
}

func (a *RouterAPI) usersGet(_ *beauty.Request, reply *beauty.Reply, _ map[string]string) {
	writeJSON(reply, beauty.StatusOK, []map[string]string{
		{"id": "1", "name": "John Doe"},
		{"id": "2", "name": "Jane Smith"},
	})
}

func (a *RouterAPI) usersUserIDGet(_ *beauty.Request, reply *beauty.Reply, params map[string]string) {
	userID := params["userId"]
	writeJSON(reply, beauty.StatusOK, map[string]string{
		"id":    userID,
		"name":  "User " + userID,
		"email": fmt.Sprintf("user%s@example.com", userID),
	})
}

func (a *RouterAPI) usersPost(req *beauty.Request, reply *beauty.Reply, _ map[string]string) {
	var body map[string]any
	if len(*reply.Content) > 0 {
		_ = json.Unmarshal(*reply.Content, &body)
	}
	writeJSON(reply, beauty.StatusCreated, map[string]string{
		"message": "User created successfully",
		"id":      "123",
	})
}

func (a *RouterAPI) usersUserIDPut(req *beauty.Request, reply *beauty.Reply, params map[string]string) {
	userID := params["userId"]
	writeJSON(reply, beauty.StatusOK, map[string]string{
		"message": fmt.Sprintf("User %s updated successfully", userID),
	})
}

func (a *RouterAPI) usersUserIDDelete(_ *beauty.Request, reply *beauty.Reply, params map[string]string) {
	userID := params["userId"]
	writeJSON(reply, beauty.StatusOK, map[string]string{
		"message": fmt.Sprintf("User %s deleted successfully", userID),
	})
}

func (a *RouterAPI) usersUserIDPostsPostIDGet(_ *beauty.Request, reply *beauty.Reply, params map[string]string) {
	userID, postID := params["userId"], params["postId"]
	writeJSON(reply, beauty.StatusOK, map[string]string{
		"id":      postID,
		"userId":  userID,
		"title":   fmt.Sprintf("Post %s by User %s", postID, userID),
		"content": "This is the content of the post.",
	})
}
