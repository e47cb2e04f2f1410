// Package config loads the selectd configuration.
//
// Configuration comes from selectd.yaml, selectd.yml or selectd.json, with
// SELECTD_* environment variables applied on top:
//
//	listen: ":8080"
//	source:
//	  kind: file
//	  path: state.json
//	  interval: 2s
//	selector:
//	  path: users.#(active==true)#.name
//	  equal: deep
//
// Missing values fall back to the defaults from New.
package config
