// Copyright (c) 2024 Razin Bouzar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	log "github.com/sirupsen/logrus"
)

// LogFieldFormatter adds a set of default fields to every entry before
// delegating to the wrapped formatter. Fields set on the entry itself
// win over the defaults.
type LogFieldFormatter struct {
	log.Formatter
	Fields log.Fields
}

// Format the entry with the default fields merged in.
func (f *LogFieldFormatter) Format(entry *log.Entry) ([]byte, error) {
	merged := make(log.Fields, len(f.Fields)+len(entry.Data))
	for k, v := range f.Fields {
		merged[k] = v
	}
	for k, v := range entry.Data {
		merged[k] = v
	}
	entry.Data = merged
	return f.Formatter.Format(entry)
}
