// Package descriptor reads and writes the YAML (or JSON) documents that describe baselines
// and builds model baselines from them.
//
// A descriptor directory holds one component document per file and an optional
// baseline.yaml naming the baseline:
//
//	name: release-1
//	components:
//	  - id: org.example.core
//	    version: 1.0.0
//	    executionEnvironments: [JavaSE-1.8]
//	    packages:
//	      - name: org.example.core
//	        visibility: api
//	      - pattern: org.example.core.internal.**
//	        visibility: private
//	    types:
//	      - name: org.example.core.Widget
//	        modifiers: [public]
//	        methods:
//	          - name: size
//	            descriptor: ()I
//	            modifiers: [public]
package descriptor
