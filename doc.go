// Package cancomm provides non-blocking access to CAN and CAN FD networks
// through Linux SocketCAN.
//
// It includes:
//   - A Context that owns one raw CAN socket and negotiates classic or FD
//     framing from the interface MTU at connect time
//   - A Frame type with the kernel can_frame/canfd_frame wire layouts
//   - DLC helpers mapping payload lengths to the lengths CAN FD can carry
//   - Device discovery for interfaces with the CAN hardware type
//   - An in-memory loopback backend for tests and simulations
//   - Filters, a polling Mux, a zerolog Bus decorator and Prometheus metrics
//
// Bringing interfaces up and setting bit rates is left to iproute2, e.g.
//
//	ip link set can0 up type can bitrate 500000 dbitrate 2000000 fd on
package cancomm
