// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

// Command scimd runs the SCIM 1.0 resource server: it loads the schema
// and resource-type definitions, builds the LDAP-backed Backend from
// the configured attribute mappings, and serves the REST API until
// signalled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/conf"
	"github.com/scimdrift/scimd/ldapbackend"
	"github.com/scimdrift/scimd/ldapmap"
	"github.com/scimdrift/scimd/schema"
	"github.com/scimdrift/scimd/server"
)

var log logger.Logger

func init() {
	log = logger.GetLogger("scimd.main")
}

var confPath = flag.String("conf", "/etc/scimd/scimd.yaml", "path to the server's YAML configuration file")
var replicaId = flag.Uint("replica", 1, "this server's replica ID, stamped into every change sequence number it mints")

func main() {
	flag.Parse()
	logger.ConfigureLoggers("<root>=debug")

	cfg, err := conf.Load(*confPath)
	if err != nil {
		log.Criticalf("could not load configuration from %s: %s", *confPath, err)
		os.Exit(1)
	}

	reg, err := schema.NewRegistry()
	if err != nil {
		log.Criticalf("could not initialize schema registry: %s", err)
		os.Exit(1)
	}

	if cfg.SchemaDir != "" {
		if err := base.LoadSchemas(reg, cfg.SchemaDir); err != nil {
			log.Criticalf("could not load schemas from %s: %s", cfg.SchemaDir, err)
			os.Exit(1)
		}
	}

	if cfg.ResourceTypeDir != "" {
		if err := base.LoadResTypes(reg, cfg.ResourceTypeDir); err != nil {
			log.Criticalf("could not load resource types from %s: %s", cfg.ResourceTypeDir, err)
			os.Exit(1)
		}
	}

	templates := ldapmap.LoadLdapTemplates(cfg.LdapMapDir, reg)

	backend := ldapbackend.New(cfg.Ldap, templates, uint16(*replicaId))
	defer backend.Close()

	srv := server.New(reg, backend, cfg)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Errorf("server stopped: %s", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	log.Debugf("waiting for signals...")
	<-sigs
	log.Infof("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warningf("error during shutdown: %s", err)
	}
}
