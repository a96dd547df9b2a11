// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strconv"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/resolution"
)

// ContentType is the media type of a bundle document.
const ContentType = "application/xml; charset=utf-8"

var (
	chunkProlog       = []byte("<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"yes\"?>\n<modules>\n")
	chunkModulesEnd   = []byte("</modules>")
	chunkErrorStart   = []byte("<error>")
	chunkErrorEnd     = []byte("</error>\n")
	chunkResolveEnd   = []byte("</resolve>\n")
	chunkMapEnd       = []byte("</map>\n")
	chunkFileEnd      = []byte("]]></file>\n")
	chunkFileAttrPath = []byte("\" path=\"")
	chunkCDATAStart   = []byte("\"><![CDATA[")
)

// document writes the framing around file bytes into a buffer.
type document struct {
	buf bytes.Buffer
}

func (d *document) prolog() {
	d.buf.Write(chunkProlog)
}

func (d *document) errorElement(desc resolution.ErrorDescriptor) error {
	d.buf.Write(chunkErrorStart)
	if err := d.writeJSON(desc); err != nil {
		return err
	}
	d.buf.Write(chunkErrorEnd)
	return nil
}

func (d *document) resolve(special bool, m resolution.Map) error {
	d.open("resolve", special)
	if err := d.writeJSON(m); err != nil {
		return err
	}
	d.buf.Write(chunkResolveEnd)
	return nil
}

func (d *document) depMap(special bool, m map[string]resolution.Map) error {
	d.open("map", special)
	if err := d.writeJSON(m); err != nil {
		return err
	}
	d.buf.Write(chunkMapEnd)
	return nil
}

// fileStart writes <file special=".." path=".."><![CDATA[
func (d *document) fileStart(job box.Job) {
	d.buf.WriteString(`<file special="`)
	d.buf.WriteString(strconv.FormatBool(job.IsSpecial()))
	d.buf.Write(chunkFileAttrPath)
	// xml.EscapeText only fails when the writer does.
	_ = xml.EscapeText(&d.buf, []byte(job.Value))
	d.buf.Write(chunkCDATAStart)
}

func (d *document) fileEnd() {
	d.buf.Write(chunkFileEnd)
}

func (d *document) end() {
	d.buf.Write(chunkModulesEnd)
}

func (d *document) open(tag string, special bool) {
	d.buf.WriteByte('<')
	d.buf.WriteString(tag)
	d.buf.WriteString(` special="`)
	d.buf.WriteString(strconv.FormatBool(special))
	d.buf.WriteString(`">`)
}

// writeJSON writes v without a trailing newline. HTML escaping stays on so no
// element content can close its tag.
func (d *document) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.buf.Write(data)
	return nil
}

// take returns the buffered bytes and resets the buffer.
func (d *document) take() []byte {
	out := bytes.Clone(d.buf.Bytes())
	d.buf.Reset()
	return out
}

func (d *document) empty() bool {
	return d.buf.Len() == 0
}

// ErrorDocument renders the document returned for a request that was
// rejected before any traversal: the prolog, the error element and empty
// dependency maps.
func ErrorDocument(err error) ([]byte, error) {
	var d document
	d.prolog()
	if err := d.errorElement(resolution.Pack(err)); err != nil {
		return nil, err
	}
	if err := d.footer(nil, nil); err != nil {
		return nil, err
	}
	return d.take(), nil
}

func (d *document) footer(normal, special map[string]resolution.Map) error {
	if normal == nil {
		normal = map[string]resolution.Map{}
	}
	if special == nil {
		special = map[string]resolution.Map{}
	}
	if err := d.depMap(false, normal); err != nil {
		return err
	}
	if err := d.depMap(true, special); err != nil {
		return err
	}
	d.end()
	return nil
}
