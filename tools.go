//go:build tools

package tools

// mockery generates pkg/physical/mocks from .mockery.yaml:
//
//	go run github.com/vektra/mockery/v2
import (
	_ "github.com/vektra/mockery/v2"
)
