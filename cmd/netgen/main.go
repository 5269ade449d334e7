// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command netgen parses neuron and synapse declaration files and emits
// per-population/per-projection generated source artifacts.
//
// Grounded on emer-gosl/gosl.go's goslMain: stdlib flag for the CLI
// surface, os.MkdirAll for the output directory, and a directory walk
// (filepath.WalkDir) over positional arguments that formats a single
// file directly or recurses into a directory, restricted here to
// *.neuron/*.synapse declaration files instead of *.go.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nrnforge/netgen/internal/emit"
	"github.com/nrnforge/netgen/internal/pipeline"
	"github.com/nrnforge/netgen/internal/profile"
	"github.com/nrnforge/netgen/internal/registry"
)

var (
	outDir                = flag.String("out", "generated", "output directory for generated artifacts")
	backendFlag           = flag.String("backend", "single", "target backend: single, threads, or gpu")
	structuralPlasticity  = flag.Bool("structural-plasticity", false, "enable structural-plasticity defaults (add_synapse/remove_synapse)")
	profileFlag           = flag.Bool("profile", false, "wrap local/global meta-steps with the profiling-annotation mixin")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: netgen [flags] path ...\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "netgen: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("at least one declaration file or directory must be given")
	}

	backend, err := emit.ParseBackend(*backendFlag)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return err
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !isDeclFile(d) {
				return err
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return err
		}
	}

	reg := registry.New()
	mixin := profile.NewMixin(*profileFlag)

	for _, f := range files {
		if err := processFile(f, backend, *structuralPlasticity, reg, mixin); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

func isDeclFile(d fs.DirEntry) bool {
	if d.IsDir() {
		return false
	}
	name := d.Name()
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".neuron") || strings.HasSuffix(name, ".synapse")
}

// processFile parses one declaration file, runs it through the analysis
// pipeline, emits its artifacts, and writes them to *outDir.
func processFile(path string, backend emit.Backend, structuralPlasticity bool, reg *registry.Registry, mixin *profile.Mixin) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decl, err := parseDeclFile(string(src))
	if err != nil {
		return err
	}
	decl.StructuralPlasticityEnabled = decl.StructuralPlasticityEnabled || structuralPlasticity

	d, err := pipeline.Build(decl)
	if err != nil {
		return err
	}

	art, err := emit.Emit(d, backend, reg, mixin)
	if err != nil {
		return err
	}

	fmt.Printf("%s -> %s (%s)\n", path, art.ArtifactName, backend)

	return writeArtifacts(*outDir, art)
}

func writeArtifacts(dir string, art *emit.Artifacts) error {
	files := map[string]string{
		art.ArtifactName + "_header.gen":  art.Header,
		art.ArtifactName + "_impl.gen":    art.Impl,
		art.ArtifactName + "_binding.gen": art.Binding,
		art.ArtifactName + ".manifest":    art.Manifest,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}
