package beauty

import (
	"fmt"
	"strings"
)

// StreamCallback pulls the next chunk of a streamed or "big" reply body into
// buf, returning the number of bytes written. A return of 0 or a non-nil
// err signals end of stream.
type StreamCallback func(id string, buf []byte) (n int, err error)

// Reply owns the outgoing status line, headers and body for one request.
// Content aliases the connection's bounded send buffer; sendPtr's data does
// not, which is how large file payloads are served without copying them
// into that buffer.
type Reply struct {
	Content       *[]byte
	FilePath      string
	FileExtension string

	status  Status
	headers []Header

	returnToClient bool

	externalData []byte

	replyPartial bool
	finalPart    bool

	noBodyBytesReceived int

	isMultiPart          bool
	lastOpenFileForWriteID string
	multipartParser      *MultipartParser

	streamCallback   StreamCallback
	streamID         string
	totalStreamSize  int
	streamedBytes    int
	useChunkedEncoding bool
}

// NewReply returns a Reply whose Content buffer aliases content (typically
// the owning connection's send buffer).
func NewReply(content *[]byte) *Reply {
	return &Reply{
		Content:         content,
		status:          StatusOK,
		multipartParser: NewMultipartParser(),
	}
}

func (r *Reply) reset() {
	*r.Content = (*r.Content)[:0]
	r.FilePath = ""
	r.FileExtension = ""
	r.headers = r.headers[:0]
	r.returnToClient = false
	r.externalData = nil
	r.replyPartial = false
	r.finalPart = false
	r.noBodyBytesReceived = 0
	r.isMultiPart = false
	r.lastOpenFileForWriteID = ""
	r.multipartParser.Reset()
	r.streamCallback = nil
	r.streamID = ""
	r.totalStreamSize = 0
	r.streamedBytes = 0
	r.useChunkedEncoding = false
}

// Status returns the status set by the most recent send/sendPtr/stockReply.
func (r *Reply) Status() Status { return r.status }

// Headers returns the headers accumulated so far.
func (r *Reply) Headers() []Header { return r.headers }

// ReturnToClient reports whether the reply is ready to be written.
func (r *Reply) ReturnToClient() bool { return r.returnToClient }

// AddHeader appends a header. Order is preserved on the wire.
func (r *Reply) AddHeader(name, val string) {
	r.headers = append(r.headers, Header{Name: name, Value: val})
}

// HasHeaders reports whether any header has been added.
func (r *Reply) HasHeaders() bool { return len(r.headers) > 0 }

// HeaderValue returns the first header value matching name case-insensitively.
func (r *Reply) HeaderValue(name string) string {
	for _, h := range r.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Send finalizes a reply with no body: status codes below 200, and 204,
// carry no Content-Length; everything else gets an explicit
// "Content-Length: 0".
func (r *Reply) Send(status Status) {
	r.status = status
	if status < 200 || status == StatusNoContent {
		*r.Content = (*r.Content)[:0]
	} else {
		r.AddHeader("Content-Length", fmt.Sprintf("%d", len(*r.Content)))
	}
	r.returnToClient = true
}

// SendWithContentType finalizes a reply whose body is already in *r.Content.
func (r *Reply) SendWithContentType(status Status, contentType string) {
	r.status = status
	r.AddHeader("Content-Length", fmt.Sprintf("%d", len(*r.Content)))
	r.AddHeader("Content-Type", contentType)
	r.returnToClient = true
}

// SendPtr finalizes a reply whose body is data, a caller-owned slice that is
// written directly rather than copied into the connection's send buffer.
func (r *Reply) SendPtr(status Status, contentType string, data []byte) {
	r.status = status
	r.AddHeader("Content-Length", fmt.Sprintf("%d", len(data)))
	r.AddHeader("Content-Type", contentType)
	r.externalData = data
	r.returnToClient = true
}

// SendBig finalizes a reply whose total size is known up front but whose
// bytes are produced on demand by callback — used for files larger than the
// connection's send buffer.
func (r *Reply) SendBig(status Status, contentType string, totalSize int, callback StreamCallback) {
	r.status = status
	r.AddHeader("Content-Length", fmt.Sprintf("%d", totalSize))
	r.AddHeader("Content-Type", contentType)
	r.streamCallback = callback
	r.totalStreamSize = totalSize
	r.streamedBytes = 0
	r.replyPartial = true
	r.returnToClient = true
}

// SendStreaming finalizes a reply whose total size is unknown: the body is
// sent with Transfer-Encoding: chunked, each pull from callback wrapped in
// its own chunk.
func (r *Reply) SendStreaming(status Status, contentType string, callback StreamCallback) {
	r.status = status
	r.AddHeader("Transfer-Encoding", "chunked")
	r.AddHeader("Content-Type", contentType)
	r.streamCallback = callback
	r.useChunkedEncoding = true
	r.replyPartial = true
	r.returnToClient = true
}

// stockReply assembles a canonical JSON error/status body for a request the
// handler chain did not otherwise finalize.
func (r *Reply) stockReply(req *Request, status Status) {
	r.status = status
	body := stockReplyBody(status)
	r.headers = r.headers[:0]
	if status == StatusNoContent {
		body = nil
	} else {
		r.AddHeader("Content-Length", fmt.Sprintf("%d", len(body)))
	}
	r.AddHeader("Content-Type", "application/json")

	if !isStatusOK(status) {
		r.AddHeader("Connection", "close")
	}

	if req != nil && req.Method == "HEAD" {
		body = nil
	}

	*r.Content = (*r.Content)[:0]
	*r.Content = append(*r.Content, body...)
	r.returnToClient = true
}

// wrapChunk formats one streamed chunk as hex-length CRLF + data + CRLF, the
// wire format Transfer-Encoding: chunked requires.
func wrapChunk(data []byte) []byte {
	out := make([]byte, 0, len(data)+16)
	out = append(out, []byte(fmt.Sprintf("%x\r\n", len(data)))...)
	out = append(out, data...)
	out = append(out, '\r', '\n')
	return out
}

// finalChunk is the terminal zero-length chunk marking end of a chunked body.
func finalChunk() []byte {
	return []byte("0\r\n\r\n")
}
