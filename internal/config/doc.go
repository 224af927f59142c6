// Package config loads the server configuration.
//
// Sources are merged in priority order, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. Global config in $XDG_CONFIG_HOME/mcp-claude-code/
//  3. Project config (.mcp-claude-code.json, .jsonc, .yaml) in the working directory
//  4. The file named by MCP_CLAUDE_CODE_CONFIG, then the --config flag
//  5. AGENT_* environment variables, after loading .env from the working directory
//
// JSON files may carry comments (JSONC, stripped with tidwall/jsonc). Any file
// may reference environment variables with {env:NAME}:
//
//	{
//	  "agent": {
//	    "provider": "anthropic",
//	    "model": "claude-sonnet-4-20250514",
//	    "api_key": "{env:ANTHROPIC_API_KEY}"
//	  },
//	  "permission": {
//	    "require_approval": ["write", "edit"]
//	  }
//	}
//
// List fields (allowed paths, exclusions, command allow/deny) accumulate across
// files; scalar fields are overwritten.
package config
