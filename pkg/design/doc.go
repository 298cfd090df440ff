// Package design defines the typed design tree shared by the codec and the
// reconstruction driver: sketches (points, curves, profiles, plane frame),
// extrude features, and the ordered build sequence. It also owns the entity
// normalizer, which prunes a raw design document and rebuilds it in the
// canonical form every later stage assumes.
package design
