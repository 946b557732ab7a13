// Copyright © 2018 One Concern

package storage

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/oneconcern/trawler/pkg/storage/status"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeValue marshals a storage value to its persisted JSON form.
func EncodeValue(value interface{}) ([]byte, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, status.ErrInvalidValue.Wrap(err)
	}
	return data, nil
}

// DecodeValue unmarshals a persisted value into the caller's shape.
func DecodeValue(data []byte, value interface{}) error {
	if err := codec.Unmarshal(data, value); err != nil {
		return status.ErrInvalidValue.Wrap(err)
	}
	return nil
}
