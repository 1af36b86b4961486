package model

import "github.com/imdario/mergo"

// MergeEnv layers maps in order, later maps overriding earlier ones, per the
// workflow env → job env → step env → matrix injections precedence in
// spec.md §3. A nil input map is treated as empty.
func MergeEnv(layers ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		// mergo.Merge with WithOverride lets the incoming layer win on
		// conflicting keys, which is exactly last-write-wins.
		_ = mergo.Merge(&result, layer, mergo.WithOverride)
	}
	return result
}
