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

package codec

import (
	"encoding/binary"
	"strings"

	"github.com/gradienthealth/dicom"
	"github.com/gradienthealth/dicom/dicomio"
	"github.com/gradienthealth/dicom/dicomtag"
	"gitlab.com/tozd/go/errors"
)

const (
	itemGroup       = 0xfffe
	undefinedLength = 0xffffffff
	maxShortLength  = 0xffff
)

// VRs whose explicit header carries two reserved bytes and a 32 bit length
var longHeaderVRs = map[string]bool{
	"NA": true, "OB": true, "OD": true, "OF": true, "OL": true, "OW": true,
	"SQ": true, "UN": true, "UC": true, "UR": true, "UT": true,
}

// transferSyntax resolves the body encoding of a transfer syntax uid
func transferSyntax(uid string) (bo binary.ByteOrder, implicit dicomio.IsImplicitVR, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("transfer syntax %q: %v", uid, rec)
		}
	}()

	bo, implicit, err = dicomio.ParseTransferSyntaxUID(uid)
	if err != nil {
		return nil, dicomio.UnknownVR, errors.Errorf("transfer syntax %q: %w", uid, err)
	}
	return bo, implicit, nil
}

// ✍️ writeElement encodes one body element. Sequences and items are walked here so that every
// nested element goes through the same checks. Elements the library writer cannot re-emit
// as decoded are written raw, the rest are handed to dicom.WriteElement.
func writeElement(e *dicomio.Encoder, elem *dicom.Element) {
	switch {
	case elem.Tag == dicomtag.PixelData:
		dicom.WriteElement(e, elem)
	case elem.VR == "SQ" || elem.Tag == dicomtag.Item:
		writeContainer(e, elem)
	case needsRaw(elem):
		writeRaw(e, elem)
	default:
		dicom.WriteElement(e, elem)
	}
}

// needsRaw reports whether the library writer would reject a decoded element. AT values
// decode as tags but are only written from strings, and an element whose VR kind differs
// from the dictionary entry is refused outright.
func needsRaw(elem *dicom.Element) bool {
	if elem.VR == "AT" {
		return true
	}
	if elem.VR == "" {
		return false
	}
	entry, err := dicomtag.Find(elem.Tag)
	if err != nil || entry.VR == elem.VR {
		return false
	}
	return dicomtag.GetVRKind(elem.Tag, entry.VR) != dicomtag.GetVRKind(elem.Tag, elem.VR)
}

func writeContainer(e *dicomio.Encoder, elem *dicom.Element) {
	vr := "SQ"
	end := dicomtag.SequenceDelimitationItem
	if elem.Tag == dicomtag.Item {
		vr = "NA"
		end = dicomtag.ItemDelimitationItem
	}

	children := make([]*dicom.Element, 0, len(elem.Value))
	for _, v := range elem.Value {
		child, ok := v.(*dicom.Element)
		if !ok || (vr == "SQ" && child.Tag != dicomtag.Item) {
			e.SetErrorf("%s: expected an item, found %T", dicomtag.DebugString(elem.Tag), v)
			return
		}
		children = append(children, child)
	}

	if elem.UndefinedLength {
		writeHeader(e, elem.Tag, vr, undefinedLength)
		for _, child := range children {
			writeElement(e, child)
		}
		writeHeader(e, end, "", 0)
		return
	}

	bo, implicit := e.TransferSyntax()
	sub := dicomio.NewBytesEncoder(bo, implicit)
	for _, child := range children {
		writeElement(sub, child)
	}
	if err := sub.Error(); err != nil {
		e.SetError(err)
		return
	}
	data := sub.Bytes()
	writeHeader(e, elem.Tag, vr, uint32(len(data)))
	e.WriteBytes(data)
}

// writeRaw encodes the decoded values by their Go type, keeping the VR the file declared
func writeRaw(e *dicomio.Encoder, elem *dicom.Element) {
	if elem.UndefinedLength {
		e.SetErrorf("%s: undefined length %s element", dicomtag.DebugString(elem.Tag), elem.VR)
		return
	}

	bo, implicit := e.TransferSyntax()
	sub := dicomio.NewBytesEncoder(bo, implicit)
	var strs []string
	for _, v := range elem.Value {
		switch t := v.(type) {
		case string:
			strs = append(strs, t)
		case dicomtag.Tag:
			sub.WriteUInt16(t.Group)
			sub.WriteUInt16(t.Element)
		case uint16:
			sub.WriteUInt16(t)
		case int16:
			sub.WriteInt16(t)
		case uint32:
			sub.WriteUInt32(t)
		case int32:
			sub.WriteInt32(t)
		case float32:
			sub.WriteFloat32(t)
		case float64:
			sub.WriteFloat64(t)
		case []byte:
			writeRawBytes(sub, elem.VR, t)
		default:
			e.SetErrorf("%s: cannot encode %T value", dicomtag.DebugString(elem.Tag), v)
			return
		}
	}
	if len(strs) > 0 {
		s := strings.Join(strs, "\\")
		sub.WriteString(s)
		if len(s)%2 == 1 {
			sub.WriteByte(padding(elem.VR))
		}
	}
	if err := sub.Error(); err != nil {
		e.SetError(err)
		return
	}

	data := sub.Bytes()
	if implicit == dicomio.ExplicitVR && !longHeaderVRs[elem.VR] && len(data) > maxShortLength {
		e.SetErrorf("%s: %d bytes do not fit a %s element", dicomtag.DebugString(elem.Tag), len(data), elem.VR)
		return
	}
	writeHeader(e, elem.Tag, elem.VR, uint32(len(data)))
	e.WriteBytes(data)
}

// writeRawBytes writes a binary payload. OW words are held in native order after decoding.
func writeRawBytes(e *dicomio.Encoder, vr string, b []byte) {
	if vr != "OW" {
		e.WriteBytes(b)
		if len(b)%2 == 1 {
			e.WriteByte(0)
		}
		return
	}
	if len(b)%2 != 0 {
		e.SetErrorf("OW payload of odd length %d", len(b))
		return
	}
	for i := 0; i < len(b); i += 2 {
		e.WriteUInt16(dicomio.NativeByteOrder.Uint16(b[i:]))
	}
}

func padding(vr string) byte {
	if vr == "UI" {
		return 0
	}
	return ' '
}

// writeHeader emits tag, VR and length the way the transfer syntax lays them out. Item and
// delimiter headers are always implicit.
func writeHeader(e *dicomio.Encoder, tag dicomtag.Tag, vr string, vl uint32) {
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if tag.Group == itemGroup || implicit != dicomio.ExplicitVR {
		e.WriteUInt32(vl)
		return
	}

	e.WriteString(vr)
	if longHeaderVRs[vr] {
		e.WriteZeros(2)
		e.WriteUInt32(vl)
		return
	}
	e.WriteUInt16(uint16(vl))
}
