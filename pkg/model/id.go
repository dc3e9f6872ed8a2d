package model

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID identifies a stored entity and every reference between entities.
// Its format belongs to the store that issued it: 24-char hex ObjectIDs for
// MongoDB, UUIDs for the memory and file stores.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// MarshalBSONValue stores hex ObjectIDs as native ObjectIds so references stay
// joinable from the mongo shell. Anything else is stored as a string.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(string(id))
}

func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeObjectID:
		*id = ID(raw.ObjectID().Hex())
	case bson.TypeString:
		*id = ID(raw.StringValue())
	case bson.TypeNull, bson.TypeUndefined:
		*id = ""
	default:
		return fmt.Errorf("cannot decode %s into model.ID", t)
	}
	return nil
}

// IDs converts raw strings into IDs, dropping blanks.
func IDs(values []string) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out = append(out, ID(v))
	}
	return out
}

// Strings is the inverse of IDs.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// UniqueIDs removes duplicates and blanks, keeping the first occurrence of each id.
func UniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
