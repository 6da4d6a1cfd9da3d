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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/razinbouzar/druid/common/backoff"
	"github.com/razinbouzar/druid/common/config"
	"github.com/razinbouzar/druid/common/logging"
	"github.com/razinbouzar/druid/common/metrics"
	"github.com/razinbouzar/druid/leader"
)

const (
	_metricFlushInterval = 1 * time.Second
	_httpScheme          = "http"
)

var (
	version string

	app = kingpin.New("electiond", "Leader election daemon")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	electionZkServers = app.Flag(
		"election-zk-server",
		"Election Zookeeper servers. Specify multiple times for multiple servers "+
			"(election.zk_servers override) (set $ELECTION_ZK_SERVERS to override)").
		Envar("ELECTION_ZK_SERVERS").
		Strings()

	role = app.Flag(
		"role", "role to campaign for (role override)").
		Envar("ELECTION_ROLE").
		String()

	httpPort = app.Flag(
		"http-port", "port to advertise and serve http on (http_port override) "+
			"(set $HTTP_PORT to override)").
		Envar("HTTP_PORT").
		Int()
)

// electionListener logs leadership transitions. Real deployments embed
// the selector and hang their coordinator duties off these callbacks.
type electionListener struct {
	role string
}

func (l *electionListener) BecomeLeader() error {
	log.WithField("role", l.role).Info("Gained leadership")
	return nil
}

func (l *electionListener) StopBeingLeader() error {
	log.WithField("role", l.role).Info("Lost leadership")
	return nil
}

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Setup logging.
	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &log.JSONFormatter{},
			Fields: log.Fields{
				"app": app.Name,
			},
		},
	)
	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	// Load and override configuration.
	log.WithField("files", *cfgFiles).Info("Loading electiond config")
	var cfg Config
	if err := config.Parse(&cfg, *cfgFiles...); err != nil {
		log.WithField("error", err).Fatal("Cannot parse yaml config")
	}
	if len(*electionZkServers) > 0 {
		cfg.Election.ZKServers = *electionZkServers
	}
	if *role != "" {
		cfg.Role = *role
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	log.WithField("config", cfg).Info("Loaded electiond configuration")

	// Configure tally metrics.
	rootScope, scopeCloser, mux := metrics.InitMetricScope(
		&cfg.Metrics,
		app.Name,
		_metricFlushInterval,
	)
	defer scopeCloser.Close()
	mux.HandleFunc(
		logging.LevelOverwrite,
		logging.LevelOverwriteHandler(initialLevel),
	)

	id := leader.NewID(_httpScheme, cfg.HTTPPort)
	log.WithFields(log.Fields{"id": id, "role": cfg.Role}).
		Info("Campaigning with candidate identity")

	var client leader.Client
	connect := func() error {
		var err error
		client, err = leader.NewZKClient(cfg.Election, cfg.Role, id)
		return err
	}
	if err := backoff.Retry(connect, backoff.NewRetryPolicy(5, 2*time.Second)); err != nil {
		log.WithError(err).Fatal("Cannot connect to zookeeper ensemble")
	}
	defer client.Close()

	selector, err := leader.NewSelector(cfg.Election, client, rootScope, cfg.Role)
	if err != nil {
		log.WithError(err).Fatal("Cannot create leader selector")
	}

	if err := selector.RegisterListener(&electionListener{role: cfg.Role}); err != nil {
		log.WithError(err).Fatal("Cannot join election")
	}

	observer, err := leader.NewObserver(
		cfg.Election,
		rootScope.SubScope("discovery"),
		cfg.Role,
		func(newLeader string) error {
			log.WithFields(log.Fields{"role": cfg.Role, "leader": newLeader}).
				Info("Leadership changed hands")
			return nil
		},
	)
	if err != nil {
		log.WithError(err).Fatal("Cannot create election observer")
	}
	if err := observer.Start(); err != nil {
		log.WithError(err).Fatal("Cannot start election observer")
	}

	mux.HandleFunc("/leader", func(w http.ResponseWriter, _ *http.Request) {
		current, err := selector.GetCurrentLeader()
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, err.Error())
			return
		}
		if current == "" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, "no leader recognized")
			return
		}
		fmt.Fprintln(w, current)
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		log.WithField("addr", addr).Info("Serving http")
		log.Fatal(http.ListenAndServe(addr, mux))
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("Shutting down")
	observer.Stop()
	if err := selector.UnregisterListener(); err != nil {
		log.WithError(err).Error("Failed to leave election cleanly")
	}
}
