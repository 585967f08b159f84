package demo

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/paneda/beauty-sub000"
)

// FileAPI answers two plain (non-router) endpoints for doc-root bookkeeping:
// /list-files returns the document root's regular files as JSON, and
// /download-file hands the actual byte-serving off to the FileSink by
// setting reply.FilePath and returning without finalizing the reply.
type FileAPI struct {
	docRoot string
}

// NewFileAPI returns a FileAPI rooted at docRoot.
func NewFileAPI(docRoot string) *FileAPI {
	return &FileAPI{docRoot: docRoot}
}

type listedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// HandleRequest is registered as a RequestHandlerFunc ahead of the default
// file-sink behaviour.
func (a *FileAPI) HandleRequest(req *beauty.Request, reply *beauty.Reply) {
	if req.Method != "GET" && req.Method != "HEAD" {
		return
	}

	if strings.HasPrefix(req.RequestPath, "/list-files") {
		entries, err := os.ReadDir(a.docRoot)
		if err != nil {
			reply.AddHeader("Content-Type", "application/json")
			*reply.Content = append(*reply.Content, []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))...)
			reply.SendWithContentType(beauty.StatusInternalServerError, "application/json")
			return
		}
		files := make([]listedFile, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				info, err := e.Info()
				if err != nil {
					continue
				}
				files = append(files, listedFile{Name: e.Name(), Size: info.Size()})
			}
		}
		body, _ := json.Marshal(files)
		*reply.Content = append((*reply.Content)[:0], body...)
		reply.SendWithContentType(beauty.StatusOK, "application/json")
		return
	}

	if strings.HasPrefix(req.RequestPath, "/download-file") {
		filename := req.QueryValue("name")
		reply.AddHeader("Content-Type", "application/octet-stream")
		reply.AddHeader("Content-Disposition", "attachment; filename="+filename)
		reply.FilePath = filename
		return
	}
}
