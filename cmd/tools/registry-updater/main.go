// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"banking-command-workers/pkg/registry"
)

var registryPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add-submodule", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, addCmd} {
		fs.StringVar(&registryPath, "path", "configs/modules.json", "Path to module registry file")
	}

	moduleCode := addCmd.String("module", "", "Module code (e.g., ANALYTICS)")
	code := addCmd.String("code", "", "Submodule code (e.g., ANALYTICS_SAVINGS)")
	name := addCmd.String("name", "", "Submodule name (e.g., Savings Analysis)")
	endpoint := addCmd.String("endpoint", "", "Backend endpoint")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadModules(registryPath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d modules.\n", len(reg.Codes()))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadModules(registryPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, m := range reg.Modules() {
			fmt.Printf("%s (%s)\n", m.Name, m.Code)
			for _, sub := range m.Submodules {
				fmt.Printf("  - %s (%s)\n", sub.Name, sub.Code)
			}
		}

	case "add-submodule":
		addCmd.Parse(os.Args[2:])
		if *moduleCode == "" || *code == "" || *name == "" {
			fmt.Println("Error: module, code, and name are required for add-submodule.")
			addCmd.Usage()
			os.Exit(1)
		}
		sub := registry.SubModule{Code: *code, Name: *name, Endpoint: *endpoint}
		if err := addSubModule(*moduleCode, sub); err != nil {
			fmt.Printf("Error adding submodule: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added submodule %s to %s\n", *code, *moduleCode)

	case "help":
		fallthrough
	default:
		help()
	}
}

func addSubModule(moduleCode string, sub registry.SubModule) error {
	reg, err := registry.LoadModules(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	modules := reg.Modules()
	found := false
	for i := range modules {
		if modules[i].Code == moduleCode {
			modules[i].Submodules = append(modules[i].Submodules, sub)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("module %s not found", moduleCode)
	}

	// re-run the registry checks, e.g. duplicate submodule codes
	if _, err := registry.New(modules); err != nil {
		return err
	}
	return saveRegistry(modules, registryPath)
}

func saveRegistry(modules []registry.Module, path string) error {
	data, err := json.MarshalIndent(map[string]interface{}{"modules": modules}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  validate       Validate the module registry file
  list           Print modules and their submodules
  add-submodule  Add a submodule to an existing module
  help           Show this help message

Examples:
  registry-updater validate -path configs/modules.json
  registry-updater list
  registry-updater add-submodule -module ANALYTICS -code ANALYTICS_SAVINGS -name "Savings Analysis"

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
