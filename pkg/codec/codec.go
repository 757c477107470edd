// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codec reads and writes DICOM Part 10 files through github.com/gradienthealth/dicom
// and converts them to and from the dataset tree.
//
// File meta (group 0002) is split off into an opaque FileMeta and written back exactly as
// decoded. Scalar payloads keep the decoded library element so values are re-emitted as
// they were parsed. The body is written element by element so that values the library writer
// cannot re-emit (AT lists, VRs that disagree with the dictionary) are encoded raw.
package codec

import (
	"fmt"
	"io"
	"strings"

	"github.com/gradienthealth/dicom"
	"github.com/gradienthealth/dicom/dicomio"
	"github.com/gradienthealth/dicom/dicomtag"
	"github.com/walteh/dcmrmel/pkg/dataset"
	"gitlab.com/tozd/go/errors"
)

const metaGroup = 0x0002

// MediaStorageDirectoryStorage is the SOP class of a DICOMDIR
const MediaStorageDirectoryStorage = "1.2.840.10008.1.3.10"

// DecodeError is returned when a file cannot be parsed as DICOM
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding dicom: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// 📋 FileMeta is the group 0002 header of a file
type FileMeta struct {
	elements []*dicom.Element
}

// NewFileMeta wraps already decoded meta elements
func NewFileMeta(elems []*dicom.Element) FileMeta {
	return FileMeta{elements: elems}
}

// Len returns the number of meta elements
func (m FileMeta) Len() int {
	return len(m.elements)
}

// TransferSyntaxUID returns (0002,0010), or "" when absent
func (m FileMeta) TransferSyntaxUID() string {
	return m.stringValue(dicomtag.TransferSyntaxUID)
}

// MediaStorageSOPClassUID returns (0002,0002), or "" when absent
func (m FileMeta) MediaStorageSOPClassUID() string {
	return m.stringValue(dicomtag.MediaStorageSOPClassUID)
}

// IsDirectory reports whether the file is a DICOMDIR
func (m FileMeta) IsDirectory() bool {
	return m.MediaStorageSOPClassUID() == MediaStorageDirectoryStorage
}

func (m FileMeta) stringValue(tag dicomtag.Tag) string {
	for _, e := range m.elements {
		if e.Tag != tag || len(e.Value) == 0 {
			continue
		}
		if s, ok := e.Value[0].(string); ok {
			return strings.TrimRight(s, "\x00 ")
		}
	}
	return ""
}

// 📄 File is one decoded DICOM file
type File struct {
	Meta    FileMeta
	Dataset *dataset.Dataset
}

// 🧰 Codec decodes and encodes DICOM files
type Codec struct{}

// 🏭 New creates a codec
func New() *Codec {
	return &Codec{}
}

// Decode parses size bytes from r
func (c *Codec) Decode(r io.Reader, size int64) (f *File, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.WithStack(&DecodeError{Err: errors.Errorf("parser panic: %v", rec)})
		}
	}()

	p, err := dicom.NewParser(r, size, nil)
	if err != nil {
		return nil, errors.WithStack(&DecodeError{Err: err})
	}

	ds, err := p.Parse(dicom.ParseOptions{})
	if err != nil {
		return nil, errors.WithStack(&DecodeError{Err: err})
	}

	var meta, body []*dicom.Element
	for _, e := range ds.Elements {
		if e.Tag.Group == metaGroup {
			meta = append(meta, e)
			continue
		}
		body = append(body, e)
	}

	tree, err := fromElements(body)
	if err != nil {
		return nil, errors.WithStack(&DecodeError{Err: err})
	}

	return &File{Meta: NewFileMeta(meta), Dataset: tree}, nil
}

// Encode writes f to w with its original file meta. The header goes through the library
// writer, the body through writeElement in the meta's transfer syntax.
func (c *Codec) Encode(w io.Writer, f *File) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("writer panic: %v", rec)
		}
	}()

	body, err := toElements(f.Dataset)
	if err != nil {
		return errors.Errorf("converting dataset: %w", err)
	}

	meta := make([]*dicom.Element, 0, len(f.Meta.elements))
	for _, e := range f.Meta.elements {
		// the writer computes the group length itself
		if e.Tag == dicomtag.FileMetaInformationGroupLength {
			continue
		}
		meta = append(meta, e)
	}

	bo, implicit, err := transferSyntax(f.Meta.TransferSyntaxUID())
	if err != nil {
		return errors.Errorf("writing dataset: %w", err)
	}

	enc := dicomio.NewEncoder(w, nil, dicomio.UnknownVR)
	dicom.WriteFileHeader(enc, meta)
	if err := enc.Error(); err != nil {
		return errors.Errorf("writing file meta: %w", err)
	}

	enc.PushTransferSyntax(bo, implicit)
	for _, e := range body {
		writeElement(enc, e)
	}
	enc.PopTransferSyntax()

	if err := enc.Error(); err != nil {
		return errors.Errorf("writing dataset: %w", err)
	}
	return nil
}

func fromElements(elems []*dicom.Element) (*dataset.Dataset, error) {
	ds := dataset.New()
	for _, e := range elems {
		if e == nil {
			continue
		}
		tag := dataset.Tag{Group: e.Tag.Group, Element: e.Tag.Element}

		if e.VR != string(dataset.VRSQ) {
			ds.Set(dataset.NewScalar(tag, dataset.VR(e.VR), e))
			continue
		}

		seq := dataset.NewSequence(tag)
		seq.UndefinedLength = e.UndefinedLength
		for _, v := range e.Value {
			item, ok := v.(*dicom.Element)
			if !ok || item.Tag != dicomtag.Item {
				return nil, errors.Errorf("sequence %s holds %T, expected an item", tag, v)
			}
			children := make([]*dicom.Element, 0, len(item.Value))
			for _, cv := range item.Value {
				child, ok := cv.(*dicom.Element)
				if !ok {
					return nil, errors.Errorf("item in sequence %s holds %T, expected an element", tag, cv)
				}
				children = append(children, child)
			}
			nested, err := fromElements(children)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, &dataset.Item{Dataset: nested, UndefinedLength: item.UndefinedLength})
		}
		ds.Set(seq)
	}
	return ds, nil
}

func toElements(ds *dataset.Dataset) ([]*dicom.Element, error) {
	out := make([]*dicom.Element, 0, ds.Len())
	for _, e := range ds.Elements() {
		switch v := e.(type) {
		case *dataset.Scalar:
			le, ok := v.Payload.(*dicom.Element)
			if !ok {
				return nil, errors.Errorf("element %s has payload %T, expected a decoded element", v.Tag(), v.Payload)
			}
			out = append(out, le)
		case *dataset.Sequence:
			items := make([]interface{}, 0, len(v.Items))
			for _, item := range v.Items {
				children, err := toElements(item.Dataset)
				if err != nil {
					return nil, err
				}
				values := make([]interface{}, len(children))
				for i, c := range children {
					values[i] = c
				}
				items = append(items, &dicom.Element{
					Tag:             dicomtag.Item,
					VR:              "NA",
					UndefinedLength: item.UndefinedLength,
					Value:           values,
				})
			}
			out = append(out, &dicom.Element{
				Tag:             dicomtag.Tag{Group: v.Tag().Group, Element: v.Tag().Element},
				VR:              string(dataset.VRSQ),
				UndefinedLength: v.UndefinedLength,
				Value:           items,
			})
		default:
			return nil, errors.Errorf("unsupported element %T", e)
		}
	}
	return out, nil
}
