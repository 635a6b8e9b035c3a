// Package config handles tools-file loading for the toolbox server.
//
// # Overview
//
// The tools file is a single YAML document declaring the backends and the
// operations exposed over MCP. It has five top-level sections:
//
//	sources:         named backend connections (postgres, mysql, sqlite, mssql, http)
//	tools:           named operations bound to a source
//	toolsets:        named groups of tools for scoped exposure
//	authServices:    token verifiers (jwt) for tools with authRequired
//	metadata_source: catalog database for column-description annotation
//
// Sources and tools are decoded through their kind-registered config
// factories, and their document order is preserved: the order tools appear
// in the file is the order clients see in tools/list.
//
// # Environment Variable Expansion
//
// Values can reference environment variables before parsing:
//
//	sources:
//	  my-pg:
//	    kind: postgres
//	    password: ${PG_PASSWORD}
//
// Unset variables keep their literal ${VAR_NAME} text rather than becoming
// empty strings.
//
// # Example
//
//	sources:
//	  my-pg:
//	    kind: postgres
//	    host: 127.0.0.1
//	    port: 5432
//	    database: toolbox
//	    user: app
//	    password: ${PG_PASSWORD}
//
//	tools:
//	  search-hotels:
//	    kind: postgres-sql
//	    source: my-pg
//	    description: Search hotels by city.
//	    parameters:
//	      - name: city
//	        type: string
//	        description: City to search.
//	    statement: SELECT * FROM hotels WHERE city = $1
//
//	toolsets:
//	  travel:
//	    - search-hotels
package config
