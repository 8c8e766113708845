// Package policy provides optional declarative gating of inbound actions,
// for example denying file edits in a read-only deployment. Engines that do
// not embed a Policy in their context execute everything automatically.
package policy
