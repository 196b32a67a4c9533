package models

// MCPServer configures one MCP server launch. Env values are sensitive.
type MCPServer struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Env     []EnvVar `json:"env,omitempty"`
}

// Settings holds environment variables and auxiliary server configs, either
// globally or scoped to one repository. Repository-scoped settings are merged
// over global ones with repository values winning on key collision.
type Settings struct {
	EnvironmentVariables []EnvVar             `json:"environmentVariables,omitempty"`
	MCPServers           map[string]MCPServer `json:"mcpServers,omitempty"`
}

// MergeSettings overlays repo over global. Env vars collide by Key with repo
// taking precedence; global-only keys are preserved. MCP servers collide by
// name the same way. Global ordering is kept, repo-only entries follow.
func MergeSettings(global, repo Settings) Settings {
	merged := Settings{}

	override := make(map[string]string, len(repo.EnvironmentVariables))
	for _, v := range repo.EnvironmentVariables {
		override[v.Key] = v.Value
	}

	seen := make(map[string]bool, len(global.EnvironmentVariables))
	for _, v := range global.EnvironmentVariables {
		seen[v.Key] = true
		if value, ok := override[v.Key]; ok {
			v.Value = value
		}
		merged.EnvironmentVariables = append(merged.EnvironmentVariables, v)
	}
	for _, v := range repo.EnvironmentVariables {
		if !seen[v.Key] {
			merged.EnvironmentVariables = append(merged.EnvironmentVariables, v)
		}
	}

	if len(global.MCPServers) > 0 || len(repo.MCPServers) > 0 {
		merged.MCPServers = make(map[string]MCPServer, len(global.MCPServers)+len(repo.MCPServers))
		for name, srv := range global.MCPServers {
			merged.MCPServers[name] = srv
		}
		for name, srv := range repo.MCPServers {
			merged.MCPServers[name] = srv
		}
	}

	return merged
}
