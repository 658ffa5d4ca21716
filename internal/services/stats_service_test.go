package services

import (
	"testing"

	"github.com/pgxn-tester/server/pkg/domain"
)

func TestMergeByMajor(t *testing.T) {
	merged := mergeByMajor([]domain.ResultTally{
		{PGVersion: "9.4.1", Tests: 3, InstallOK: 3},
		{PGVersion: "9.4.5", Tests: 2, InstallOK: 1, InstallError: 1},
		{PGVersion: "15.2.0", Tests: 4, CheckOK: 4},
		{PGVersion: "garbage", Tests: 1},
	})

	if len(merged) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %+v", len(merged), merged)
	}

	byLabel := map[string]domain.ResultTally{}
	for _, m := range merged {
		byLabel[m.PGVersion] = m
	}

	if tl := byLabel["9.4"]; tl.Tests != 5 || tl.InstallOK != 4 || tl.InstallError != 1 {
		t.Errorf("unexpected 9.4 bucket: %+v", tl)
	}
	if tl := byLabel["15"]; tl.Tests != 4 || tl.CheckOK != 4 {
		t.Errorf("unexpected 15 bucket: %+v", tl)
	}
	// unparseable versions keep their own bucket
	if tl := byLabel["garbage"]; tl.Tests != 1 {
		t.Errorf("unexpected garbage bucket: %+v", tl)
	}
}
