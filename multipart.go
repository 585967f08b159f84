package beauty

import "strings"

// ContentPart is one part of a multipart/form-data body, with Start/End
// byte offsets into the buffer MultipartParser.Parse returned it against.
type ContentPart struct {
	Filename   string
	Start      int
	End        int
	HeaderOnly bool
	FoundStart bool
	FoundEnd   bool
}

// MultipartResult is the outcome of one MultipartParser.Parse call.
type MultipartResult int

const (
	MultipartIndeterminate MultipartResult = iota
	MultipartDone
	MultipartBad
)

type mpState int

const (
	mpExpectHyphen1 mpState = iota
	mpExpectHyphen2
	mpBoundaryFirst
	mpExpectNewline1
	mpHeaderLineStart
	mpHeaderLWS
	mpHeaderName
	mpSpaceBeforeHeaderValue
	mpHeaderValue
	mpExpectNewline2
	mpExpectNewline3
	mpPartDataStart
	mpPartDataCont
	mpExpectHyphen3
	mpBoundaryNext
	mpBoundaryClose
)

// MultipartParser is a streaming multipart/form-data splitter that tolerates
// part boundaries straddling arbitrary buffer refills by keeping one buffer
// of look-back (lastBuffer_/lastParts_ in the original implementation).
type MultipartParser struct {
	state         mpState
	boundary      string
	headers       []Header
	boundaryCount int

	lastBuffer []byte
	lastParts  []ContentPart
}

// NewMultipartParser returns a parser ready for ParseHeader.
func NewMultipartParser() *MultipartParser {
	return &MultipartParser{state: mpExpectHyphen1}
}

// Reset clears all parser state, including the look-back buffer, ahead of
// the next request.
func (p *MultipartParser) Reset() {
	p.state = mpExpectHyphen1
	p.boundary = ""
	p.headers = nil
	p.boundaryCount = 0
	p.lastBuffer = nil
	p.lastParts = nil
}

// ParseHeader extracts the boundary token from a multipart Content-Type
// header value, e.g. "multipart/form-data; boundary=X123; foo=bar" -> "X123".
// The boundary runs from "boundary=" to the next ';' or end of value.
func (p *MultipartParser) ParseHeader(contentType string) bool {
	p.Reset()
	if !strings.Contains(contentType, "multipart") {
		return false
	}
	const key = "boundary="
	foundStart := strings.Index(contentType, key)
	if foundStart == -1 {
		return false
	}
	rest := contentType[foundStart+len(key):]
	if semi := strings.IndexByte(rest, ';'); semi != -1 {
		p.boundary = rest[:semi]
	} else {
		p.boundary = rest
	}
	return true
}

// Parse consumes *content (the connection's shared buffer) and fills parts
// with the parts completed in the PREVIOUS call, adjusted for any part that
// straddled the buffer boundary between the two calls. This look-back
// indirection is what lets a part's end marker, discovered only after more
// bytes have arrived, retroactively correct the end offset of a part
// reported as complete in an earlier call.
func (p *MultipartParser) Parse(content *[]byte, parts *[]ContentPart) MultipartResult {
	if len(*content) == 0 {
		return MultipartIndeterminate
	}

	var localParts []ContentPart
	result := MultipartIndeterminate
	for i := 0; i < len(*content); i++ {
		result = p.consume(i, (*content)[i], &localParts)
		if result != MultipartIndeterminate {
			break
		}
	}

	if result == MultipartBad {
		return result
	}

	if result == MultipartIndeterminate && len(localParts) == 0 {
		localParts = append(localParts, ContentPart{})
	}

	*parts, p.lastParts = p.lastParts, localParts
	*content, p.lastBuffer = p.lastBuffer, *content

	containEndForPartToLeave := false
	for i := range p.lastParts {
		lp := &p.lastParts[i]
		if !lp.FoundStart {
			lp.Start = 0
		}
		if !lp.FoundEnd {
			lp.End = len(p.lastBuffer)
		} else {
			// end_ was recorded one byte after the boundary match; back it
			// off by len(boundary) + 2 dashes + the preceding CRLF to exclude
			// "\r\n--boundary".
			lp.End = lp.End - len(p.boundary) - 4
			if lp.End < lp.Start {
				partToLeave := &(*parts)[len(*parts)-1]
				partToLeave.End = partToLeave.End - (lp.Start - lp.End)
				partToLeave.FoundEnd = true
				containEndForPartToLeave = true
			}
		}
	}
	if containEndForPartToLeave {
		p.lastParts = p.lastParts[1:]
	}

	return result
}

// Flush retrieves the final look-back part once the terminal boundary has
// been seen (MultipartDone). Must be called exactly once after Done.
func (p *MultipartParser) Flush(content *[]byte, parts *[]ContentPart) {
	*parts, p.lastParts = p.lastParts, nil
	*content, p.lastBuffer = p.lastBuffer, nil
}

// PeekLastPart exposes the pending look-back parts without consuming them,
// used by the handler chain to open a write file early on a headers-only
// part before its body bytes have arrived.
func (p *MultipartParser) PeekLastPart() []ContentPart {
	return p.lastParts
}

func (p *MultipartParser) consume(i int, input byte, parts *[]ContentPart) MultipartResult {
	switch p.state {
	case mpExpectHyphen1:
		if input != '-' {
			return MultipartBad
		}
		p.state = mpExpectHyphen2
		return MultipartIndeterminate
	case mpExpectHyphen2:
		if input != '-' {
			return MultipartBad
		}
		p.state = mpBoundaryFirst
		return MultipartIndeterminate
	case mpBoundaryFirst:
		if input == '\r' {
			p.state = mpExpectNewline1
		}
		return MultipartIndeterminate
	case mpExpectNewline1:
		if input != '\n' {
			return MultipartBad
		}
		p.state = mpHeaderLineStart
		return MultipartIndeterminate
	case mpHeaderLineStart:
		switch {
		case input == '\r':
			p.state = mpExpectNewline3
		case len(p.headers) > 0 && (input == ' ' || input == '\t'):
			p.state = mpHeaderLWS
		case !isChar(input) || isCtl(input) || isTspecial(input):
			return MultipartBad
		default:
			p.headers = append(p.headers, Header{Name: string(input)})
			p.state = mpHeaderName
		}
		return MultipartIndeterminate
	case mpHeaderLWS:
		switch {
		case input == '\r':
			p.state = mpExpectNewline2
		case input == ' ' || input == '\t':
		case isCtl(input):
			return MultipartBad
		default:
			p.state = mpHeaderValue
			last := &p.headers[len(p.headers)-1]
			last.Value += string(input)
		}
		return MultipartIndeterminate
	case mpHeaderName:
		switch {
		case input == ':':
			p.state = mpSpaceBeforeHeaderValue
		case !isChar(input) || isCtl(input) || isTspecial(input):
			return MultipartBad
		default:
			last := &p.headers[len(p.headers)-1]
			last.Name += string(input)
		}
		return MultipartIndeterminate
	case mpSpaceBeforeHeaderValue:
		if input != ' ' {
			return MultipartBad
		}
		p.state = mpHeaderValue
		return MultipartIndeterminate
	case mpHeaderValue:
		if input == '\r' {
			h := &p.headers[len(p.headers)-1]
			if strings.EqualFold(h.Name, "Content-Disposition") {
				const key = `filename="`
				foundStart := strings.LastIndex(h.Value, key)
				if foundStart == -1 {
					return MultipartBad
				}
				rest := h.Value[foundStart+len(key):]
				foundEnd := strings.IndexByte(rest, '"')
				if foundEnd == -1 {
					return MultipartBad
				}
				if len(*parts) == 0 {
					*parts = append(*parts, ContentPart{})
				}
				(*parts)[len(*parts)-1].Filename = rest[:foundEnd]
				p.headers = nil
			}
			p.state = mpExpectNewline2
			return MultipartIndeterminate
		}
		if isCtl(input) {
			return MultipartBad
		}
		last := &p.headers[len(p.headers)-1]
		last.Value += string(input)
		return MultipartIndeterminate
	case mpExpectNewline2:
		if input != '\n' {
			return MultipartBad
		}
		p.state = mpHeaderLineStart
		return MultipartIndeterminate
	case mpExpectNewline3:
		if input != '\n' {
			return MultipartBad
		}
		if len(*parts) == 0 {
			*parts = append(*parts, ContentPart{})
		}
		(*parts)[len(*parts)-1].HeaderOnly = true
		p.state = mpPartDataStart
		return MultipartIndeterminate
	case mpPartDataStart:
		if len(*parts) == 0 {
			*parts = append(*parts, ContentPart{})
		}
		last := &(*parts)[len(*parts)-1]
		last.HeaderOnly = false
		last.Start = i
		last.FoundStart = true
		p.state = mpPartDataCont
		return MultipartIndeterminate
	case mpPartDataCont:
		if input == '-' {
			p.state = mpExpectHyphen3
		}
		return MultipartIndeterminate
	case mpExpectHyphen3:
		if input == '-' {
			p.state = mpBoundaryNext
			p.boundaryCount = 0
		} else {
			p.state = mpPartDataCont
		}
		return MultipartIndeterminate
	case mpBoundaryNext:
		if input == p.boundary[p.boundaryCount] {
			p.boundaryCount++
			if p.boundaryCount == len(p.boundary) {
				p.state = mpBoundaryClose
			}
		} else {
			p.boundaryCount = 0
			p.state = mpPartDataCont
		}
		return MultipartIndeterminate
	case mpBoundaryClose:
		if len(*parts) == 0 {
			*parts = append(*parts, ContentPart{})
		}
		last := &(*parts)[len(*parts)-1]
		last.End = i
		last.FoundEnd = true

		switch input {
		case '-':
			return MultipartDone
		case '\r':
			*parts = append(*parts, ContentPart{})
			p.state = mpExpectNewline1
			return MultipartIndeterminate
		default:
			return MultipartBad
		}
	default:
		return MultipartBad
	}
}
