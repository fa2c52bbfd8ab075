// Copyright 2026 The Cacheaudit Authors

// This file is part of Cacheaudit.
//
// Cacheaudit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cacheaudit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cacheaudit.  If not, see <https://www.gnu.org/licenses/>.

package analysis

import (
	"fmt"

	"github.com/go-errors/errors"
)

// ErrBottom is returned when an operation yields no feasible abstract state.
// Callers drop the path that produced it.
var ErrBottom = errors.New("bottom: infeasible abstract state")

// ErrInvariant marks a violated internal invariant of the trace lattice.
// Such errors are never recoverable; the running analysis must be aborted.
var ErrInvariant = errors.New("trace lattice invariant violated")

// ErrPlaceholderMerge is the invariant violation of merging two placeholders.
// Their histories cannot be combined into a single merge key.
var ErrPlaceholderMerge = errors.New("cannot merge two placeholders")

func invariantf(format string, args ...interface{}) error {
	return errors.WrapPrefix(ErrInvariant, fmt.Sprintf(format, args...), 1)
}

// IsBottom reports whether err signals an infeasible state.
func IsBottom(err error) bool {
	return errors.Is(err, ErrBottom)
}

// IsInvariantViolation reports whether err stems from a broken lattice invariant.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariant) || IsPlaceholderMerge(err)
}

func IsPlaceholderMerge(err error) bool {
	return errors.Is(err, ErrPlaceholderMerge)
}
