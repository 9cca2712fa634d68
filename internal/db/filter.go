package db

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FilterBuilder assembles bson.M query filters fluently. Calling two
// conditions on the same field overwrites the first; use Between for ranges.
type FilterBuilder struct {
	filter bson.M
}

func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq matches documents where field equals value.
func (f *FilterBuilder) Eq(field string, value interface{}) *FilterBuilder {
	f.filter[field] = value
	return f
}

// Gt matches documents where field is strictly greater than value.
func (f *FilterBuilder) Gt(field string, value interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$gt": value}
	return f
}

// Lt matches documents where field is strictly less than value.
func (f *FilterBuilder) Lt(field string, value interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$lt": value}
	return f
}

// Lte matches documents where field is at most value. On date fields this
// never matches null or missing values, so it doubles as a presence check.
func (f *FilterBuilder) Lte(field string, value interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$lte": value}
	return f
}

// In matches documents where field holds any of the given values.
func (f *FilterBuilder) In(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// Between matches documents where field lies in [min, max].
func (f *FilterBuilder) Between(field string, min, max interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$gte": min, "$lte": max}
	return f
}

// Contains matches documents where field contains value as a case-insensitive
// substring. The needle is quoted so user input cannot smuggle regex
// metacharacters into the query.
func (f *FilterBuilder) Contains(field string, value string) *FilterBuilder {
	f.filter[field] = bson.M{"$regex": regexp.QuoteMeta(value), "$options": "i"}
	return f
}

// ObjectID matches field against a hex ObjectID. Invalid hex adds no
// condition; combined with a guard on another field the query then simply
// misses.
func (f *FilterBuilder) ObjectID(field string, id string) *FilterBuilder {
	if objectID, err := primitive.ObjectIDFromHex(id); err == nil {
		f.filter[field] = objectID
	}
	return f
}

// Build returns the assembled filter.
func (f *FilterBuilder) Build() bson.M {
	return f.filter
}
