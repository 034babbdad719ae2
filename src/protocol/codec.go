package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// Request layouts, all little-endian:
//
//	Config: [4B opcode]
//	Query:  [4B opcode][4B limit][algorithm]\0[path]
//
// Response layout: [4B status][payload]. On failure the payload is an
// optional UTF-8 message.

// EncodeConfigRequest returns the Config request frame.
func EncodeConfigRequest() []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, OpcodeSize), uint32(OpConfig))
}

// EncodeQueryRequest returns a Query frame asking for at most limit matches
// of path under algorithm.
func EncodeQueryRequest(algorithm, path string, limit uint32) []byte {
	buf := make([]byte, 0, QueryHeaderSize+len(algorithm)+1+len(path))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(OpQuery))
	buf = binary.LittleEndian.AppendUint32(buf, limit)
	buf = append(buf, algorithm...)
	buf = append(buf, 0)
	return append(buf, path...)
}

// DecodeResponse strips the status header and returns the payload, or the
// daemon's error as a *StatusError.
func DecodeResponse(frame []byte) ([]byte, error) {
	if len(frame) < StatusSize {
		return nil, protocolErrorf("response of %d bytes is shorter than the status header", len(frame))
	}

	status := Status(binary.LittleEndian.Uint32(frame))
	payload := frame[StatusSize:]
	if status == StatusOK {
		return payload, nil
	}

	message := status.Text()
	if len(payload) > 0 {
		message = decodeText(payload)
	}
	return nil, &StatusError{Status: status, Message: message}
}

// DecodeConfigPayload splits a Config response payload into the config file
// path and the collection path.
func DecodeConfigPayload(payload []byte) (configPath, collectionPath string, err error) {
	fields := strings.Split(decodeText(payload), "\x00")
	if len(fields) != 2 {
		return "", "", protocolErrorf("config payload has %d fields, want 2", len(fields))
	}
	return fields[0], fields[1], nil
}

// DecodeSimilarList decodes every complete 12-byte (group, index, diff)
// record in payload; a trailing partial record is ignored.
func DecodeSimilarList(payload []byte) []Similar {
	out := make([]Similar, 0, len(payload)/SimilarRecordSize)
	for read := 0; read+SimilarRecordSize <= len(payload); read += SimilarRecordSize {
		out = append(out, Similar{
			Group: binary.LittleEndian.Uint32(payload[read:]),
			Index: binary.LittleEndian.Uint32(payload[read+4:]),
			Diff:  binary.LittleEndian.Uint32(payload[read+8:]),
		})
	}
	return out
}

// daemon side

// DecodeRequest reads the opcode of a request frame and returns the rest.
func DecodeRequest(frame []byte) (Opcode, []byte, error) {
	if len(frame) < OpcodeSize {
		return OpUnknown, nil, protocolErrorf("request of %d bytes is shorter than the opcode", len(frame))
	}
	op := Opcode(binary.LittleEndian.Uint32(frame))
	if op == OpUnknown {
		return op, nil, protocolErrorf("zero opcode")
	}
	return op, frame[OpcodeSize:], nil
}

// DecodeQueryRequest parses the body of a Query frame, after the opcode.
func DecodeQueryRequest(body []byte) (QueryRequest, error) {
	if len(body) < 4 {
		return QueryRequest{}, protocolErrorf("query body of %d bytes has no limit", len(body))
	}
	limit := binary.LittleEndian.Uint32(body)
	algorithm, path, ok := bytes.Cut(body[4:], []byte{0})
	if !ok {
		return QueryRequest{}, protocolErrorf("query algorithm is not nul-terminated")
	}
	return QueryRequest{
		Limit:     limit,
		Algorithm: string(algorithm),
		Path:      decodeText(path),
	}, nil
}

// EncodeResponse prefixes payload with StatusOK.
func EncodeResponse(payload []byte) []byte {
	buf := make([]byte, 0, StatusSize+len(payload))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(StatusOK))
	return append(buf, payload...)
}

// EncodeErrorResponse returns a failed response; an empty message leaves the
// client to describe status itself.
func EncodeErrorResponse(status Status, message string) []byte {
	buf := make([]byte, 0, StatusSize+len(message))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(status))
	return append(buf, message...)
}

// EncodeConfigPayload joins the two config paths with a nul byte.
func EncodeConfigPayload(configPath, collectionPath string) []byte {
	return []byte(configPath + "\x00" + collectionPath)
}

// EncodeSimilarList packs list as back-to-back 12-byte records.
func EncodeSimilarList(list []Similar) []byte {
	buf := make([]byte, 0, len(list)*SimilarRecordSize)
	for _, s := range list {
		buf = binary.LittleEndian.AppendUint32(buf, s.Group)
		buf = binary.LittleEndian.AppendUint32(buf, s.Index)
		buf = binary.LittleEndian.AppendUint32(buf, s.Diff)
	}
	return buf
}

func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
