//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package pipeline

// State is a step of a pipeline run.
type State int

const (
	StateInit State = iota
	StateExtracting
	StateExtracted
	StateStaging
	StateStaged
	StateLoading
	StateLoaded
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:       "INIT",
	StateExtracting: "EXTRACTING",
	StateExtracted:  "EXTRACTED",
	StateStaging:    "STAGING",
	StateStaged:     "STAGED",
	StateLoading:    "LOADING",
	StateLoaded:     "LOADED",
	StateDone:       "DONE",
	StateFailed:     "FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
