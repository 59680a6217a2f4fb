// Package stage implements the passive (instrument) side of the scan
// control protocol: a TCP server that accepts one command per connection
// and drives a motion stage through an Instrument.
//
// Besides the scan session commands (INIT, MOVE, DONE) the server speaks
// the motor text commands used for manual stage positioning:
//
//	MOTOR_<axis>_<value>  set axis to value, reply "set_<axis>_<value>"
//	MOTOR_<axis>          query axis, reply "current_<axis>_<value>"
//
// SimStage provides a simulated motion stage for bench testing the
// controller without the physical instrument.
package stage
