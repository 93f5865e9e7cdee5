package main

import (
	"errors"
	"fmt"
	"strings"
)

// Command represents a generic command with its name, parameters, and validation rules.
type Command struct {
	Name        string
	Description string
	Params      []Param
	Handler     func(params []string, settings *Settings) error
}

// Param represents a parameter for a command.
type Param struct {
	Name        string
	Type        string
	Description string
}

var CommandsRegistry = []Command{
	{
		Name:        "status",
		Description: "Request a status from the server",
		Params:      []Param{},
		Handler:     handleStatusCommand,
	},
	{
		Name:        "collections",
		Description: "List collections with their feature counts",
		Params:      []Param{},
		Handler:     handleCollectionsCommand,
	},
	{
		Name:        "collection",
		Description: "Show the metadata of a collection",
		Params: []Param{
			{Name: "name", Type: "string", Description: "The collection name"},
		},
		Handler: handleCollectionCommand,
	},
	{
		Name:        "features",
		Description: "Print the first features of a collection",
		Params: []Param{
			{Name: "name", Type: "string", Description: "The collection name"},
			{Name: "limit", Type: "int", Description: "How many features to print"},
		},
		Handler: handleFeaturesCommand,
	},
	{
		Name:        "put",
		Description: "Insert a GeoJSON feature file into a collection",
		Params: []Param{
			{Name: "name", Type: "string", Description: "The collection name"},
			{Name: "file", Type: "string", Description: "Path of a GeoJSON Feature"},
		},
		Handler: handlePutCommand,
	},
	{
		Name:        "write",
		Description: "Store a raw record and print its address",
		Params: []Param{
			{Name: "value", Type: "string", Description: "The record content"},
		},
		Handler: handleWriteCommand,
	},
	{
		Name:        "get",
		Description: "Retrieves the raw record stored at an address",
		Params: []Param{
			{Name: "page", Type: "uint64", Description: "The page id"},
			{Name: "slot", Type: "uint16", Description: "The slot id"},
		},
		Handler: handleGetCommand,
	},
}

func FindCommand(input string) (*Command, []string, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, nil, errors.New("no command provided")
	}
	commandName := parts[0]
	params := parts[1:]

	for _, cmd := range CommandsRegistry {
		if cmd.Name == commandName {
			if len(params) != len(cmd.Params) {
				return nil, nil, fmt.Errorf("invalid number of parameters for command '%s'", commandName)
			}
			return &cmd, params, nil
		}
	}
	return nil, nil, fmt.Errorf("unknown command: '%s'", commandName)
}
