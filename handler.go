package beauty

import (
	"strconv"
	"strings"
)

// RequestHandlerFunc is one link in the handler chain. It should call
// reply.Send*/stockReply-equivalents and leave ReturnToClient() true once it
// has fully answered the request; otherwise the chain continues to the next
// handler (and, failing all of them, to the default file-sink behaviour).
type RequestHandlerFunc func(req *Request, reply *Reply)

// ExpectContinueHandler decides whether a request carrying
// "Expect: 100-continue" should be allowed to send its body. It may call
// reply.Send with a non-2xx status to reject the request outright, in which
// case the body is never read.
type ExpectContinueHandler func(req *Request, reply *Reply)

// defaultExpectContinueHandler accepts every 100-continue request: it
// leaves reply unfinalized, which ShouldContinueAfterHeaders reads as
// permission to keep reading the body.
func defaultExpectContinueHandler(req *Request, reply *Reply) {}

// HandlerChain runs the ordered user handlers for a request and, failing
// all of them, the default file-sink read/write flow (§4.F).
type HandlerChain struct {
	sink                   FileSink
	maxContentSize         int
	handlers               []RequestHandlerFunc
	fileNotFound           func(reply *Reply)
	expectContinueHandler  ExpectContinueHandler
	multipartWriteCounter  int
}

// NewHandlerChain returns a chain with the default file-not-found stock
// reply and 100-continue acceptance behaviour.
func NewHandlerChain(sink FileSink, maxContentSize int) *HandlerChain {
	return &HandlerChain{
		sink:           sink,
		maxContentSize: maxContentSize,
		fileNotFound: func(reply *Reply) {
			reply.stockReply(nil, StatusNotFound)
		},
		expectContinueHandler: defaultExpectContinueHandler,
	}
}

// AddRequestHandler appends h to the chain, run in insertion order.
func (c *HandlerChain) AddRequestHandler(h RequestHandlerFunc) {
	c.handlers = append(c.handlers, h)
}

// SetFileNotFoundHandler overrides the default 404 stock reply.
func (c *HandlerChain) SetFileNotFoundHandler(h func(reply *Reply)) {
	c.fileNotFound = h
}

// SetExpectContinueHandler overrides the default "always continue" policy.
func (c *HandlerChain) SetExpectContinueHandler(h ExpectContinueHandler) {
	c.expectContinueHandler = h
}

// ShouldContinueAfterHeaders runs the configured ExpectContinueHandler and
// reports whether the body should be read (i.e. the handler did not
// finalize the reply with a rejection).
func (c *HandlerChain) ShouldContinueAfterHeaders(req *Request, reply *Reply) bool {
	c.expectContinueHandler(req, reply)
	return !reply.returnToClient
}

// HandleRequest runs the chain once a request's headers (and, for non-GET
// non-multipart requests, its body) are available.
func (c *HandlerChain) HandleRequest(id string, req *Request, content *[]byte, reply *Reply) {
	reply.FilePath = req.RequestPath
	if req.Method == "GET" && strings.HasSuffix(reply.FilePath, "/") {
		reply.FilePath += "index.html"
	}

	for _, h := range c.handlers {
		h(req, reply)
		if reply.returnToClient {
			return
		}
	}

	if c.sink == nil {
		c.fileNotFound(reply)
		return
	}

	if req.Method == "POST" && reply.multipartParser.ParseHeader(req.HeaderValue("Content-Type")) {
		reply.status = StatusOK
		reply.isMultiPart = true
		c.multipartWriteCounter = 0
		c.HandlePartialWrite(id, req, content, reply)
		return
	}

	if req.Method == "GET" {
		if c.openAndReadFile(id, req, reply) {
			return
		}
	}

	c.fileNotFound(reply)
}

// HandlePartialRead pulls the next chunk of a GET reply being streamed out
// of the file sink, closing it once a short read signals end of file.
func (c *HandlerChain) HandlePartialRead(id string, req *Request, reply *Reply) {
	n := c.readFromFile(id, req, reply)
	if n < c.maxContentSize {
		reply.finalPart = true
		c.sink.CloseReadFile(id)
	}
}

// HandlePartialWrite feeds newly received bytes into the multipart parser
// and writes completed parts to the sink.
func (c *HandlerChain) HandlePartialWrite(id string, req *Request, content *[]byte, reply *Reply) {
	var parts []ContentPart
	result := reply.multipartParser.Parse(content, &parts)

	if result == MultipartBad {
		reply.stockReply(req, StatusBadRequest)
		return
	}

	c.writeFileParts(id, req, reply, *content, parts)

	if result == MultipartDone {
		reply.multipartParser.Flush(content, &parts)
		c.writeFileParts(id, req, reply, *content, parts)
	}

	if reply.status == StatusOK {
		*reply.Content = (*reply.Content)[:0]
	}
}

// CloseFile releases the read file handle (if any) still open for this
// connection, called on any terminal path (completion, error, shutdown).
// FileSink exposes no closeWriteFile: an aborted upload's partial write
// file is left for the sink to reconcile on its own, the same contract the
// original i_file_io.hpp interface has.
func (c *HandlerChain) CloseFile(id string, reply *Reply) {
	if c.sink == nil {
		return
	}
	c.sink.CloseReadFile(id)
	reply.lastOpenFileForWriteID = ""
}

func (c *HandlerChain) openAndReadFile(id string, req *Request, reply *Reply) bool {
	reply.FileExtension = extensionOf(req.RequestPath)
	contentSize := c.sink.OpenFileForRead(id, req, reply)
	if reply.returnToClient {
		// the sink already answered (e.g. 304 Not Modified, 404).
		return true
	}
	if contentSize <= 0 {
		return false
	}

	reply.replyPartial = contentSize > c.maxContentSize
	reply.status = StatusOK
	c.readFromFile(id, req, reply)
	if !reply.replyPartial {
		c.sink.CloseReadFile(id)
	}

	reply.AddHeader("Content-Length", strconv.Itoa(contentSize))
	reply.AddHeader("Content-Type", extensionToType(reply.FileExtension))
	return true
}

func (c *HandlerChain) readFromFile(id string, req *Request, reply *Reply) int {
	buf := make([]byte, c.maxContentSize)
	n := c.sink.ReadFile(id, req, buf)
	if n < 0 {
		n = 0
	}
	*reply.Content = append((*reply.Content)[:0], buf[:n]...)
	return n
}

// writeFileParts implements the two-pass peek/write algorithm: a
// headers-only part (filename known, no data yet) opens its destination
// file a request early so the client can be acknowledged with a 201 before
// its body arrives; the main pass then appends data and closes on foundEnd.
func (c *HandlerChain) writeFileParts(id string, req *Request, reply *Reply, content []byte, parts []ContentPart) {
	for _, part := range reply.multipartParser.PeekLastPart() {
		if part.HeaderOnly && part.Filename != "" {
			reply.FilePath = req.RequestPath + part.Filename
			writeID := reply.FilePath + id
			c.sink.OpenFileForWrite(writeID, req, reply)
			c.multipartWriteCounter++
			if !isStatusOK(reply.status) {
				return
			}
		}
	}

	for _, part := range parts {
		if part.HeaderOnly && part.Filename != "" {
			reply.FilePath = req.RequestPath + part.Filename
			reply.lastOpenFileForWriteID = reply.FilePath + id
			continue
		}

		if part.Filename != "" {
			reply.FilePath = req.RequestPath + part.Filename
			reply.lastOpenFileForWriteID = reply.FilePath + id
			c.sink.OpenFileForWrite(reply.lastOpenFileForWriteID, req, reply)
			c.multipartWriteCounter++
			if !isStatusOK(reply.status) {
				return
			}
		}

		if reply.lastOpenFileForWriteID == "" {
			continue
		}

		start, end := part.Start, part.End
		if start < 0 {
			start = 0
		}
		if end > len(content) {
			end = len(content)
		}
		var chunk []byte
		if end > start {
			chunk = content[start:end]
		}
		c.sink.WriteFile(reply.lastOpenFileForWriteID, req, reply, chunk, part.FoundEnd)
		if !isStatusOK(reply.status) {
			reply.lastOpenFileForWriteID = ""
			return
		}

		if part.FoundEnd {
			reply.lastOpenFileForWriteID = ""
		}
	}
}

func extensionOf(requestPath string) string {
	if strings.HasSuffix(requestPath, "/") {
		return "html"
	}
	lastSlash := strings.LastIndexByte(requestPath, '/')
	lastDot := strings.LastIndexByte(requestPath, '.')
	if lastDot != -1 && lastDot > lastSlash {
		return requestPath[lastDot+1:]
	}
	return ""
}
