package talon

import (
	"encoding/json"
	"net/url"
	"strings"
)

// buildBody assembles the request body fixed by the plan's body strategy.
// It returns the body bytes and the content type to apply when no explicit
// header layer set one already.
func (p *Plan) buildBody(args []any) ([]byte, string, error) {
	switch p.kind {
	case bodyNone:
		return nil, "", nil

	case bodyJSON:
		b := p.bindings[p.bodyIdx]
		data, err := json.Marshal(args[p.bodyIdx])
		if err != nil {
			return nil, "", &EncodeError{Op: p.op, Param: b.param.Name, Err: err}
		}
		return data, "application/json", nil

	case bodyForm:
		b := p.bindings[p.bodyIdx]
		pairs, err := p.paramPairs(p.bodyIdx, args[p.bodyIdx])
		if err != nil {
			return nil, "", &EncodeError{Op: p.op, Param: b.param.Name, Err: err}
		}
		return []byte(encodeForm(pairs)), "application/x-www-form-urlencoded", nil

	case bodyMultipart:
		fields := make([]multipartField, 0, len(p.partIdx))
		for _, i := range p.partIdx {
			b := p.bindings[i]
			switch v := args[i].(type) {
			case nil:
				continue
			case Part:
				fields = append(fields, multipartField{name: b.key, parts: []Part{v}})
			case *Part:
				if v == nil {
					continue
				}
				fields = append(fields, multipartField{name: b.key, parts: []Part{*v}})
			case []Part:
				fields = append(fields, multipartField{name: b.key, list: true, parts: v})
			default:
				return nil, "", encodeErrorf(p.op, b.param.Name,
					"multipart parameter must be Part, *Part, or []Part, got %T", args[i])
			}
		}
		body, contentType, err := encodeMultipart(p.boundary, fields)
		if err != nil {
			return nil, "", &EncodeError{Op: p.op, Err: err}
		}
		return body, contentType, nil
	}
	return nil, "", nil
}

// encodeForm serializes pairs as application/x-www-form-urlencoded in
// order. Unlike query components, form encoding writes space as '+'.
func encodeForm(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
