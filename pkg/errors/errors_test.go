// Copyright 2026 fanjia1024
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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "msg"))
	base := errors.New("base")
	wrapped := Wrap(base, "context")
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, base))
	assert.Equal(t, "context: base", wrapped.Error())
}

func TestWrapf(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "format %s", "x"))
	wrapped := Wrapf(ErrNotFound, "secret %q", "openai")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, `secret "openai": not found`, wrapped.Error())
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Is(Wrap(ErrNotFound, "x"), ErrInvalidArg))
	assert.False(t, Is(ErrNotConfigured, ErrNotFound))
}
