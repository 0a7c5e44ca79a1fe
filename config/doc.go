// Package config loads semlink configuration from layered files and the
// environment.
//
// A Config has five sections: robot (identity), nats (connection), driver
// (messaging options), metrics (Prometheus endpoint) and tap (WebSocket event
// stream). Loading applies, in order:
//
//  1. Default() values
//  2. each file layer, JSON or YAML by extension, deep-merged over the previous
//  3. SEMLINK_<SECTION>_<FIELD> environment variables
//  4. Validate
//
// Basic usage:
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/semlink/base.yaml")
//	loader.AddLayer("/etc/semlink/vasya.json")
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//	vocab, err := cfg.Vocabulary(config.ReadTreeFile)
//	d, err := driver.New(cfg.DriverConfig(), client, vocab)
//
// # Driver options
//
// listen accepts a list of channels or free text that is tokenized into
// channels. privateTopic accepts true (use the robot name), a topic string,
// or false. The short keys private, global and lang are accepted as aliases
// for privateTopic, globalTopic and language. Unknown keys are rejected.
// Durations accept "10s" style strings or a number of milliseconds;
// pruneIntervalMs is also accepted and wins over pruneInterval.
//
//	{
//	  "robot": {"name": "vasya"},
//	  "driver": {
//	    "language": "en",
//	    "listen": ["kitchen"],
//	    "privateTopic": true,
//	    "globalTopic": "robots",
//	    "treeListenDepth": 2,
//	    "commandTree": {"kitchen": {"light": {"on": "light.on", "off": "light.off"}}}
//	  }
//	}
//
// Environment values for listen are treated as free text, and for
// privateTopic as a boolean or a topic name.
package config
