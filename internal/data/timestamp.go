// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package data

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// NowUs returns the current wall-clock time in microseconds, the unit every
// Meta.TimestampUs carries. Control-message constructors that don't receive
// an explicit now_us from their caller (e.g. a deadline warning raised
// outside the data plane) use this.
func NowUs() uint64 {
	return uint64(time.Now().UnixMicro())
}

// ToProtoTimestamp converts a TimestampUs value to a protobuf Timestamp for
// callers that bridge RuntimeData metadata across a gRPC transport
// boundary.
func ToProtoTimestamp(timestampUs uint64) *timestamppb.Timestamp {
	return timestamppb.New(time.UnixMicro(int64(timestampUs)))
}

// FromProtoTimestamp converts a protobuf Timestamp back to microseconds.
func FromProtoTimestamp(ts *timestamppb.Timestamp) uint64 {
	if ts == nil {
		return 0
	}
	return uint64(ts.AsTime().UnixMicro())
}
