// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwitrace/kiwitrace/pkg/pointer"
)

func TestTo(t *testing.T) {
	a, b := pointer.To(3), pointer.To(3)
	require.NotNil(t, a)
	assert.Equal(t, 3, *a)
	assert.NotSame(t, a, b)
}

func TestNonEmpty(t *testing.T) {
	assert.Nil(t, pointer.NonEmpty(""))
	require.NotNil(t, pointer.NonEmpty("Ana"))
	assert.Equal(t, "Ana", *pointer.NonEmpty("Ana"))
}
