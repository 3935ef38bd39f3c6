// Package config loads and validates weft project configuration.
//
// Configuration lives in weft.json at the project root. Every field is
// optional; zero values fall back to defaults, and a handful of WEFT_*
// environment variables override the file for deployment-time tuning.
//
// # Configuration File Structure
//
//	{
//	  "name": "shop",
//	  "live": {
//	    "addr": ":8080",
//	    "resumeWindow": "5m",
//	    "maxSessions": 4096,
//	    "maxPerIP": 64,
//	    "eventRate": 50,
//	    "eventBurst": 100
//	  },
//	  "state": {
//	    "store": "badger",
//	    "path": ".weft/state"
//	  },
//	  "cluster": {
//	    "redis": "localhost:6379",
//	    "channel": "weft:globals"
//	  },
//	  "migrate": {
//	    "roots": ["./app"],
//	    "rules": "weft-rules.yml"
//	  },
//	  "guide": {
//	    "dir": "",
//	    "addr": ":8090"
//	  }
//	}
//
// Unknown keys are rejected so that typos surface at load time instead of
// silently falling back to defaults.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	srv := live.NewServer(cfg)
package config
