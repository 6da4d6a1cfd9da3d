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

package main

import (
	"github.com/razinbouzar/druid/common/metrics"
	"github.com/razinbouzar/druid/leader"
)

// Config holds all electiond configuration.
type Config struct {
	// Role is the name of the role to campaign for, e.g. "coordinator"
	Role string `yaml:"role" validate:"nonzero"`
	// HTTPPort is advertised in the candidate identity and serves the
	// metrics, health and leader endpoints
	HTTPPort int                   `yaml:"http_port" validate:"nonzero"`
	Election leader.ElectionConfig `yaml:"election"`
	Metrics  metrics.Config        `yaml:"metrics"`
}
