package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written mus serializers for the types the storage layer persists.
// Field order is part of the on-disk format; changing it breaks existing
// databases.

var (
	// DocIDMUS serializes document identifiers.
	DocIDMUS = docIDSer{}
	// TimeMUS serializes timestamps with microsecond precision.
	TimeMUS = timeSer{}
	// VectorMUS serializes embedding vectors.
	VectorMUS = ord.NewSliceSer[float32](varint.Float32)
	// MetadataMUS serializes document metadata mappings.
	MetadataMUS = ord.NewMapSer[string, string](ord.String, ord.String)
	// DocumentMUS serializes full document records.
	DocumentMUS = documentSer{}
)

type docIDSer struct{}

var _ mus.Serializer[DocID] = docIDSer{}

func (docIDSer) Marshal(id DocID, bs []byte) int {
	return ord.String.Marshal(string(id), bs)
}

func (docIDSer) Unmarshal(bs []byte) (DocID, int, error) {
	s, n, err := ord.String.Unmarshal(bs)
	return DocID(s), n, err
}

func (docIDSer) Size(id DocID) int {
	return ord.String.Size(string(id))
}

func (docIDSer) Skip(bs []byte) (int, error) {
	return ord.String.Skip(bs)
}

// timeSer stores timestamps as Unix microseconds and restores them in UTC.
type timeSer struct{}

var _ mus.Serializer[time.Time] = timeSer{}

func (timeSer) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (timeSer) Size(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func (timeSer) Skip(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

type documentSer struct{}

var _ mus.Serializer[Document] = documentSer{}

func (documentSer) Marshal(d Document, bs []byte) (n int) {
	n = DocIDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Title, bs[n:])
	n += ord.String.Marshal(d.Content, bs[n:])
	n += VectorMUS.Marshal(d.Vector, bs[n:])
	n += MetadataMUS.Marshal(d.Metadata, bs[n:])
	n += ord.String.Marshal(d.Source, bs[n:])
	n += TimeMUS.Marshal(d.CreatedAt, bs[n:])
	return n
}

func (documentSer) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = DocIDMUS.Unmarshal(bs); err != nil {
		return
	}
	if d.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Vector, n1, err = VectorMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Metadata, n1, err = MetadataMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (documentSer) Size(d Document) (size int) {
	size = DocIDMUS.Size(d.Id)
	size += ord.String.Size(d.Title)
	size += ord.String.Size(d.Content)
	size += VectorMUS.Size(d.Vector)
	size += MetadataMUS.Size(d.Metadata)
	size += ord.String.Size(d.Source)
	size += TimeMUS.Size(d.CreatedAt)
	return size
}

func (documentSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	if n, err = DocIDMUS.Skip(bs); err != nil {
		return
	}
	if n1, err = ord.String.Skip(bs[n:]); err != nil { // Title
		return n + n1, err
	}
	n += n1
	if n1, err = ord.String.Skip(bs[n:]); err != nil { // Content
		return n + n1, err
	}
	n += n1
	if n1, err = VectorMUS.Skip(bs[n:]); err != nil {
		return n + n1, err
	}
	n += n1
	if n1, err = MetadataMUS.Skip(bs[n:]); err != nil {
		return n + n1, err
	}
	n += n1
	if n1, err = ord.String.Skip(bs[n:]); err != nil { // Source
		return n + n1, err
	}
	n += n1
	if n1, err = TimeMUS.Skip(bs[n:]); err != nil {
		return n + n1, err
	}
	return n + n1, nil
}
